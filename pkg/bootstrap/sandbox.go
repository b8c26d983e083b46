// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

//go:build linux

package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// Command describes the payload to run inside the sandbox.
type Command struct {
	Program string
	Args    []string
	Env     map[string]string
	Dir     string // working directory in container coordinates
}

// sandboxSpec is handed to the re-exec'd sandbox helper as JSON. It carries
// everything the helper needs so it can run with a cleared environment.
type sandboxSpec struct {
	Chroot            ChrootConfig `json:"chroot"`
	FuseOverlayfsPath string       `json:"fuse_overlayfs_path"`
	Program           string       `json:"program"`
	Args              []string     `json:"args"`
	Env               []string     `json:"env"`
	Dir               string       `json:"dir"`
}

// sandboxPath is the PATH visible to build scripts.
const sandboxPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Spawn launches the payload under IPC, mount, PID, and user namespace
// isolation with the overlay chroot assembled around it.
//
// The process is the tool's own binary re-exec'd as the sandbox-exec
// helper: the helper starts inside the new namespaces, waits while this
// side maps UID/GID 0 to the invoking user via newuidmap/newgidmap, then
// mounts the overlay, binds /proc, /sys, and /dev, chroots, and execs the
// payload.
func (env *BootstrapEnv) Spawn(command *Command) (*Child, error) {
	newuidmap, err := exec.LookPath("newuidmap")
	if err != nil {
		return nil, fmt.Errorf("locate newuidmap: %w", err)
	}
	newgidmap, err := exec.LookPath("newgidmap")
	if err != nil {
		return nil, fmt.Errorf("locate newgidmap: %w", err)
	}
	fuseOverlayfs, err := exec.LookPath("fuse-overlayfs")
	if err != nil {
		return nil, fmt.Errorf("locate fuse-overlayfs: %w", err)
	}

	spec := sandboxSpec{
		Chroot:            env.chroot,
		FuseOverlayfsPath: fuseOverlayfs,
		Program:           command.Program,
		Args:              command.Args,
		Env:               payloadEnviron(command.Env),
		Dir:               command.Dir,
	}
	specJSON, err := json.Marshal(&spec)
	if err != nil {
		return nil, fmt.Errorf("encode sandbox spec: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate own executable: %w", err)
	}

	syncRead, syncWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create sandbox sync pipe: %w", err)
	}

	cmd := exec.Command(self, SandboxExecCommand, string(specJSON))
	cmd.Env = []string{}
	cmd.ExtraFiles = []*os.File{syncRead}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWIPC |
			syscall.CLONE_NEWNS |
			syscall.CLONE_NEWPID |
			syscall.CLONE_NEWUSER,
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		syncRead.Close()
		syncWrite.Close()
		return nil, fmt.Errorf("open sandbox stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		syncRead.Close()
		syncWrite.Close()
		return nil, fmt.Errorf("open sandbox stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		syncRead.Close()
		syncWrite.Close()
		return nil, fmt.Errorf("open sandbox stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		syncRead.Close()
		syncWrite.Close()
		return nil, fmt.Errorf("spawn sandbox process: %w", err)
	}
	syncRead.Close()

	// Inside UID/GID 0 maps to the invoking user outside, count 1.
	pid := strconv.Itoa(cmd.Process.Pid)
	if err := runIDMap(newuidmap, pid, os.Getuid()); err != nil {
		syncWrite.Close()
		return nil, err
	}
	if err := runIDMap(newgidmap, pid, os.Getgid()); err != nil {
		syncWrite.Close()
		return nil, err
	}

	// Closing the pipe releases the helper to proceed.
	if err := syncWrite.Close(); err != nil {
		return nil, fmt.Errorf("release sandbox process: %w", err)
	}

	return &Child{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// runIDMap invokes newuidmap or newgidmap to map ID 0 inside the namespace
// to outsideID with count 1.
func runIDMap(helper, pid string, outsideID int) error {
	cmd := exec.Command(helper, pid, "0", strconv.Itoa(outsideID), "1")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %s: %w", helper, string(out), err)
	}
	return nil
}

// payloadEnviron builds the cleared-then-populated environment for the
// payload: PATH and HOME first, caller vars after, sorted for determinism.
func payloadEnviron(extra map[string]string) []string {
	environ := []string{
		"PATH=" + sandboxPath,
		"HOME=/root",
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		environ = append(environ, k+"="+extra[k])
	}
	return environ
}

// Child is a running sandboxed process.
type Child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// TakeStdin returns the write side of the payload's stdin, or nil if
// already taken.
func (c *Child) TakeStdin() io.WriteCloser {
	stdin := c.stdin
	c.stdin = nil
	return stdin
}

// TakeStdout returns the payload's stdout, or nil if already taken.
func (c *Child) TakeStdout() io.ReadCloser {
	stdout := c.stdout
	c.stdout = nil
	return stdout
}

// TakeStderr returns the payload's stderr, or nil if already taken.
func (c *Child) TakeStderr() io.ReadCloser {
	stderr := c.stderr
	c.stderr = nil
	return stderr
}

// Wait blocks until the sandboxed process exits. A nonzero exit or a fatal
// signal is reported as an error naming the code or signal.
func (c *Child) Wait() error {
	err := c.cmd.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return fmt.Errorf("process exited with signal %s", unix.SignalName(ws.Signal()))
			}
			return fmt.Errorf("process exited with code %d", ws.ExitStatus())
		}
	}
	return fmt.Errorf("wait for sandbox process: %w", err)
}
