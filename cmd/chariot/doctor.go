package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chariot-build/chariot/internal/container"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this host can run chariot's container sandbox",
	Long: `doctor probes whether unprivileged user namespaces are usable on
this host: the unprivileged_userns_clone sysctl and a throwaway
CLONE_NEWUSER unshare in a disposable child process. Mount namespaces
are not probed.

Exits non-zero if any check fails, making it suitable as a gate in CI:

  chariot doctor || exit 1`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("checking namespace capabilities...")

	det := container.NewNamespaceDetector()
	failed := false
	for _, c := range det.Detect() {
		status := "ok"
		if !c.OK {
			status = "FAIL"
			failed = true
		}
		if c.Note != "" {
			fmt.Printf("  %-28s ... %s (%s)\n", c.Name, status, c.Note)
		} else {
			fmt.Printf("  %-28s ... %s\n", c.Name, status)
		}
	}

	if _, err := os.Stat("/proc/sys/kernel/unprivileged_userns_clone"); err != nil {
		fmt.Println("  note: sysctl missing is expected on some distributions; rely on the unshare probe above")
	}

	if failed {
		return fmt.Errorf("one or more namespace capability checks failed")
	}
	fmt.Println("all checks passed")
	return nil
}
