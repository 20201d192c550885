package container

import (
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// probeMarker is handled by Dispatch like the build stage markers,
// but runs in its own short-lived child so a capability probe never
// perturbs the calling process's own namespaces.
const probeMarker = "__chariot_container_probe_userns"

// Capability reports one probe outcome, named the way doctor prints
// it: "ok", a warning, or a hard failure.
type Capability struct {
	Name string
	OK   bool
	Note string
}

// NamespaceDetector probes whether unprivileged user namespaces are
// usable on the current host; mount namespaces are not probed. Results
// are cached after the first Detect call.
type NamespaceDetector struct {
	mu        sync.RWMutex
	checked   bool
	result    []Capability
	readFile  func(string) ([]byte, error)
	probeUser func() error
}

// NewNamespaceDetector returns a detector using the real kernel
// interfaces. Tests substitute readFile/probeUser directly.
func NewNamespaceDetector() *NamespaceDetector {
	return &NamespaceDetector{
		readFile:  os.ReadFile,
		probeUser: probeUserNamespaceInChild,
	}
}

// Detect runs (or returns the cached result of) every capability
// check: the unprivileged_userns_clone sysctl, and a throwaway
// CLONE_NEWUSER unshare performed in a forked child.
func (d *NamespaceDetector) Detect() []Capability {
	d.mu.RLock()
	if d.checked {
		defer d.mu.RUnlock()
		return d.result
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.checked {
		return d.result
	}

	d.result = []Capability{
		d.checkUnprivilegedUserns(),
		d.checkUnshare(),
	}
	d.checked = true
	return d.result
}

func (d *NamespaceDetector) checkUnprivilegedUserns() Capability {
	data, err := d.readFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// Absent on kernels where unprivileged user namespaces are
		// always permitted (no sysctl gate exists); treat as ok.
		return Capability{Name: "unprivileged_userns_clone", OK: true, Note: "sysctl absent, assuming enabled"}
	}
	if strings.TrimSpace(string(data)) == "0" {
		return Capability{Name: "unprivileged_userns_clone", OK: false, Note: "disabled by sysctl"}
	}
	return Capability{Name: "unprivileged_userns_clone", OK: true}
}

func (d *NamespaceDetector) checkUnshare() Capability {
	if err := d.probeUser(); err != nil {
		return Capability{Name: "unshare(CLONE_NEWUSER)", OK: false, Note: err.Error()}
	}
	return Capability{Name: "unshare(CLONE_NEWUSER)", OK: true}
}

// probeUserNamespaceInChild re-execs the current binary with
// probeMarker and reports whether the child could unshare its user
// namespace.
func probeUserNamespaceInChild() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, probeMarker)
	return cmd.Run()
}

// runProbe is the probeMarker's child-side entry point: it attempts
// CLONE_NEWUSER and exits 0 or 1 accordingly.
func runProbe() int {
	if err := unix.Unshare(unix.CLONE_NEWUSER); err != nil {
		return 1
	}
	return 0
}
