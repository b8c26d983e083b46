// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

//go:build linux

package bootstrap

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// SandboxExecCommand is the hidden CLI command the tool re-execs itself
// with to become the in-namespace sandbox helper.
const SandboxExecCommand = "sandbox-exec"

// syncFD is the inherited pipe the helper blocks on until the parent has
// written the UID/GID maps.
const syncFD = 3

// RunSandboxExec is the helper's entry point. It runs as PID 1 of the new
// namespaces: after the parent signals that ID maps are in place, it
// becomes UID/GID 0, mounts the overlay onto the target, binds the system
// pseudo-filesystems, chroots, and execs the payload. On success it never
// returns.
func RunSandboxExec(specJSON string) error {
	var spec sandboxSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return fmt.Errorf("decode sandbox spec: %w", err)
	}

	sync := os.NewFile(syncFD, "sandbox-sync")
	if sync == nil {
		return fmt.Errorf("sandbox sync pipe not inherited")
	}
	if _, err := io.Copy(io.Discard, sync); err != nil {
		return fmt.Errorf("wait for id maps: %w", err)
	}
	sync.Close()

	if err := unix.Setgid(0); err != nil {
		return fmt.Errorf("setgid 0: %w", err)
	}
	if err := unix.Setuid(0); err != nil {
		return fmt.Errorf("setuid 0: %w", err)
	}

	if err := mountChroot(&spec); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up system mounts: %v\n", err)
		return err
	}

	if err := unix.Chroot(spec.Chroot.TargetDir); err != nil {
		return fmt.Errorf("chroot %s: %w", spec.Chroot.TargetDir, err)
	}
	if err := unix.Chdir(spec.Dir); err != nil {
		return fmt.Errorf("chdir %s: %w", spec.Dir, err)
	}

	argv := append([]string{spec.Program}, spec.Args...)
	if err := unix.Exec(spec.Program, argv, spec.Env); err != nil {
		return fmt.Errorf("exec %s: %w", spec.Program, err)
	}
	return nil
}

// mountChroot assembles the layered filesystem: a fuse-overlayfs mount of
// the configured lower/upper/work dirs onto the target, then bind mounts of
// /proc, /sys, and /dev from the host.
//
// A native kernel overlayfs mount would avoid the FUSE round trip, but
// mounting overlayfs from a user namespace needs a non-mainline kernel
// patch; fuse-overlayfs works everywhere.
func mountChroot(spec *sandboxSpec) error {
	overlayfs := exec.Command(spec.FuseOverlayfsPath,
		"-o", "lowerdir="+strings.Join(spec.Chroot.LowerDirs, ":"),
		"-o", "upperdir="+spec.Chroot.UpperDir,
		"-o", "workdir="+spec.Chroot.WorkDir,
		spec.Chroot.TargetDir,
	)
	overlayfs.Stdout = os.Stderr
	overlayfs.Stderr = os.Stderr
	if err := overlayfs.Run(); err != nil {
		return fmt.Errorf("mount overlayfs: %w", err)
	}

	for _, dir := range []string{"proc", "sys", "dev"} {
		hostPath := "/" + dir
		targetPath := filepath.Join(spec.Chroot.TargetDir, dir)
		if err := unix.Mount(hostPath, targetPath, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("bind mount %s: %w", hostPath, err)
		}
	}
	return nil
}
