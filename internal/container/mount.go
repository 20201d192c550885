package container

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// setupMounts assembles the fixed mount set inside ctx.RootfsPath
// (resolv.conf, /dev, /sys, /run, /tmp, /var/tmp, /proc) followed by
// the caller-supplied bind mounts. It must run after chroot's
// companion unshare(CLONE_NEWNS) but before chroot itself, so that
// paths are resolved against the host filesystem.
func setupMounts(ctx *Context) error {
	root := ctx.RootfsPath

	if err := unix.Mount(root, root, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind-mounting rootfs onto itself: %w", err)
	}
	remountFlags := uintptr(unix.MS_REMOUNT | unix.MS_BIND | unix.MS_NOSUID | unix.MS_NODEV)
	if ctx.RootfsReadOnly {
		remountFlags |= unix.MS_RDONLY
	}
	if err := unix.Mount("", root, "", remountFlags, ""); err != nil {
		return fmt.Errorf("remounting rootfs: %w", err)
	}

	if err := bindFile("/etc/resolv.conf", filepath.Join(root, "etc/resolv.conf")); err != nil {
		return err
	}
	if err := bindRecSlave("/dev", filepath.Join(root, "dev")); err != nil {
		return err
	}
	if err := bindRecSlave("/sys", filepath.Join(root, "sys")); err != nil {
		return err
	}
	if err := tmpfs(filepath.Join(root, "run")); err != nil {
		return err
	}
	if err := tmpfs(filepath.Join(root, "tmp")); err != nil {
		return err
	}
	if err := tmpfs(filepath.Join(root, "var/tmp")); err != nil {
		return err
	}
	if err := procfs(filepath.Join(root, "proc")); err != nil {
		return err
	}

	for _, m := range ctx.Mounts {
		dest := filepath.Join(root, m.Dest)
		if err := bindDir(m.Src, dest, m.ReadOnly); err != nil {
			return fmt.Errorf("mounting %s: %w", m.Dest, err)
		}
	}
	return nil
}

func bindDir(src, dest string, readOnly bool) error {
	if err := os.MkdirAll(dest, 0o775); err != nil {
		return err
	}
	if err := unix.Mount(src, dest, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind %s -> %s: %w", src, dest, err)
	}
	if readOnly {
		flags := uintptr(unix.MS_REMOUNT | unix.MS_BIND | unix.MS_RDONLY)
		if err := unix.Mount("", dest, "", flags, ""); err != nil {
			return fmt.Errorf("remount %s read-only: %w", dest, err)
		}
	}
	return nil
}

func bindFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o775); err != nil {
		return err
	}
	f, err := os.OpenFile(dest, os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	f.Close()
	if err := unix.Mount(src, dest, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind %s -> %s: %w", src, dest, err)
	}
	return nil
}

// bindRecSlave recursively bind-mounts src onto dest, then marks the
// subtree slave: host-side mount/unmount events still propagate into
// the container, while mounts made inside the container do not
// propagate back out to the host.
func bindRecSlave(src, dest string) error {
	if err := os.MkdirAll(dest, 0o775); err != nil {
		return err
	}
	if err := unix.Mount(src, dest, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("rbind %s -> %s: %w", src, dest, err)
	}
	if err := unix.Mount("", dest, "", unix.MS_SLAVE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("rslave %s: %w", dest, err)
	}
	return nil
}

func tmpfs(dest string) error {
	if err := os.MkdirAll(dest, 0o775); err != nil {
		return err
	}
	if err := unix.Mount("tmpfs", dest, "tmpfs", 0, ""); err != nil {
		return fmt.Errorf("mounting tmpfs at %s: %w", dest, err)
	}
	return nil
}

func procfs(dest string) error {
	if err := os.MkdirAll(dest, 0o775); err != nil {
		return err
	}
	if err := unix.Mount("proc", dest, "proc", 0, ""); err != nil {
		return fmt.Errorf("mounting proc at %s: %w", dest, err)
	}
	return nil
}
