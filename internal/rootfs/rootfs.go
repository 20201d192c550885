// Package rootfs produces the pinned base filesystem used as the
// chroot root for every container invocation. Acquisition itself is
// an external collaborator contract: this package downloads a pinned
// bootstrap archive (via the SSRF-hardened client in internal/httputil)
// and shells out to an external pacstrap/mkarchroot-style tool chain to
// produce a functional rootfs. It never reimplements package installation.
package rootfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chariot-build/chariot/internal/errs"
	"github.com/chariot-build/chariot/internal/httputil"
	"github.com/chariot-build/chariot/internal/log"
)

// RequiredTools is the tool surface the base rootfs must provide for
// recipe materialisation to succeed.
var RequiredTools = []string{
	"bash", "wget", "tar", "b2sum", "patch", "make", "gcc", "binutils",
	"meson", "ninja", "python", "perl", "diffutils", "inetutils",
	"help2man", "bison", "flex", "gettext", "libtool", "m4", "texinfo",
	"which", "gcc-fortran", "nasm", "rsync",
}

// Options configures a base rootfs install.
type Options struct {
	// BootstrapURL is the pinned archive to download.
	BootstrapURL string
	// Dest is the target directory (normally <cache>/rootfs).
	Dest string
	// Logger receives progress lines from the install, in place of
	// passing the external tool chain's output through raw.
	Logger log.Logger
}

// Install downloads the pinned bootstrap archive and invokes the
// external bootstrap tool chain (pacstrap/mkarchroot-equivalent) to
// populate Dest with a functional Arch Linux rootfs.
//
// Any procedure producing the same tool surface is an acceptable
// substitute for the reference pacman-key/pacman-sync steps; this
// implementation shells out to "chariot-bootstrap-rootfs" if present
// on PATH, falling back to extracting the downloaded archive directly
// when the bootstrap archive is already a full rootfs tarball.
func Install(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoop()
	}

	if err := os.MkdirAll(opts.Dest, 0o755); err != nil {
		return errs.New(errs.CacheIO, "", fmt.Errorf("creating rootfs dir: %w", err))
	}

	archivePath := filepath.Join(filepath.Dir(opts.Dest), "bootstrap.tar.zst")
	logger.Info("downloading base rootfs bootstrap archive", "url", opts.BootstrapURL)
	if err := download(ctx, opts.BootstrapURL, archivePath); err != nil {
		return errs.New(errs.FetchFail, "", err)
	}

	if tool, err := exec.LookPath("chariot-bootstrap-rootfs"); err == nil {
		logger.Info("running external rootfs bootstrap tool", "tool", tool)
		cmd := exec.CommandContext(ctx, tool, archivePath, opts.Dest)
		cmd.Stdout = logWriter{logger}
		cmd.Stderr = logWriter{logger}
		if err := cmd.Run(); err != nil {
			return errs.New(errs.ExtractFail, "", fmt.Errorf("bootstrap tool failed: %w", err))
		}
		return nil
	}

	logger.Info("no external bootstrap tool found, extracting archive directly", "archive", archivePath)
	cmd := exec.CommandContext(ctx, "tar", "--no-same-owner", "--no-same-permissions",
		"-x", "--zstd", "-C", opts.Dest, "-f", archivePath)
	cmd.Stdout = logWriter{logger}
	cmd.Stderr = logWriter{logger}
	if err := cmd.Run(); err != nil {
		return errs.New(errs.ExtractFail, "", fmt.Errorf("extracting bootstrap archive: %w", err))
	}
	return nil
}

func download(ctx context.Context, url, dest string) error {
	client := httputil.NewSecureClient(httputil.DefaultOptions())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

// logWriter adapts a log.Logger to io.Writer so external process
// output is piped through structured logging at INFO level.
type logWriter struct{ logger log.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}
