/*
Copyright 2026 The glycin-go Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sandbox spawns loader binaries inside an isolation
// mechanism: a bubblewrap user-namespace jail on the host, or the
// portal's sandboxed spawn when the caller itself lives in a Flatpak.
// Either way the child gets one inherited socket for the command
// channel, a memory rlimit, and no network.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"glycin.dev/glycin/internal/testhooks"
	"glycin.dev/glycin/pkg/env"
)

// Policy selects the isolation mechanism.
type Policy int

const (
	// Auto picks FlatpakSpawn inside an installed Flatpak, Bwrap on
	// the host, and degrades to NotSandboxed in a development
	// Flatpak that cannot nest sandboxes.
	Auto Policy = iota
	Bwrap
	FlatpakSpawn
	// NotSandboxed runs the loader as a plain child process. Unsafe;
	// permitted only for tests.
	NotSandboxed
)

func (p Policy) String() string {
	switch p {
	case Auto:
		return "auto"
	case Bwrap:
		return "bwrap"
	case FlatpakSpawn:
		return "flatpak-spawn"
	case NotSandboxed:
		return "not-sandboxed"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ChildSocketFD is the well-known descriptor number the command
// socket occupies in the child, communicated in the child's argv.
const ChildSocketFD = 3

// DefaultMemLimit bounds the child's address space when the caller
// does not choose one. Generous enough for large decodes, small
// enough to stop a decompression bomb before the OOM killer has to.
const DefaultMemLimit = 8 << 30

// Options configure one launch.
type Options struct {
	// Exec is the absolute path of the loader binary.
	Exec string

	// ChildSocket is the child's end of the command channel. It is
	// inherited as ChildSocketFD. Launch does not close it; the
	// caller closes its copy after a successful spawn.
	ChildSocket *os.File

	// ExposeDir, when non-empty, is a directory bind-mounted
	// read-only at its original path (the ExposeBaseDir loader
	// option, for loaders reading companion files next to the
	// input).
	ExposeDir string

	// FontconfigVisible exposes the host fontconfig configuration,
	// needed by text-rendering vector loaders.
	FontconfigVisible bool

	// MemLimitBytes overrides DefaultMemLimit when non-zero.
	MemLimitBytes uint64
}

func (o *Options) memLimit() uint64 {
	if o.MemLimitBytes != 0 {
		return o.MemLimitBytes
	}
	return DefaultMemLimit
}

// envAllowList is the only environment the child sees, beyond
// variables the parent sets explicitly.
var envAllowList = []string{"LANG", "LC_ALL", "LC_CTYPE", "LC_MESSAGES", "XDG_RUNTIME_DIR"}

func childEnv() []string {
	var e []string
	for _, k := range envAllowList {
		if v := os.Getenv(k); v != "" {
			e = append(e, k+"="+v)
		}
	}
	return e
}

// spawnSem bounds concurrent sandbox launches; each spawn forks a
// wrapper chain and briefly holds extra descriptors.
var spawnSem = semaphore.NewWeighted(16)

// A Child is a launched, not yet reaped, sandboxed loader process.
type Child struct {
	cmd *exec.Cmd

	mu     sync.Mutex
	waited bool
	werr   error
}

// Pid returns the pid of the outermost sandbox process.
func (c *Child) Pid() int { return c.cmd.Process.Pid }

// Kill terminates the child's process group. Safe to call at any
// time, including after Wait.
func (c *Child) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waited {
		return
	}
	// Negative pid: the whole group, so the sandbox wrapper and the
	// loader both go.
	unix.Kill(-c.cmd.Process.Pid, unix.SIGKILL)
}

// Wait reaps the child. Idempotent; every exit path of a session must
// get here so no zombie outlives its handle.
func (c *Child) Wait() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.waited {
		c.werr = c.cmd.Wait()
		c.waited = true
	}
	return c.werr
}

// Resolve maps Auto onto a concrete mechanism for this process's
// environment. The GLYCIN_TEST_FORCE_SANDBOX hook overrides
// everything, including non-Auto policies, so tests can pin a
// backend.
func Resolve(p Policy) Policy {
	if forced, ok := testhooks.ForcedSandboxPolicy(); ok {
		switch forced {
		case "bwrap":
			return Bwrap
		case "flatpak-spawn":
			return FlatpakSpawn
		case "not-sandboxed":
			return NotSandboxed
		}
	}
	if p != Auto {
		return p
	}
	if env.InFlatpak() {
		if env.IsDevFlatpak() {
			env.Logf("sandbox: development Flatpak, running loaders UNSANDBOXED")
			return NotSandboxed
		}
		return FlatpakSpawn
	}
	return Bwrap
}

// Launch starts the loader described by opts under policy p. The
// returned Child must be Killed or Waited by the caller on every
// path.
func Launch(ctx context.Context, p Policy, opts Options) (*Child, error) {
	if err := spawnSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer spawnSem.Release(1)

	if opts.Exec == "" {
		return nil, fmt.Errorf("sandbox: no loader executable")
	}
	if opts.ChildSocket == nil {
		return nil, fmt.Errorf("sandbox: no child socket")
	}

	var (
		cmd *exec.Cmd
		err error
	)
	switch Resolve(p) {
	case Bwrap:
		cmd, err = bwrapCommand(ctx, opts)
	case FlatpakSpawn:
		cmd, err = flatpakSpawnCommand(ctx, opts)
	case NotSandboxed:
		cmd, err = unsandboxedCommand(ctx, opts)
	default:
		err = fmt.Errorf("sandbox: unknown policy %v", p)
	}
	if err != nil {
		return nil, err
	}

	cmd.Env = childEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if env.IsDebug() {
		cmd.Stderr = os.Stderr
	}
	env.Logf("sandbox: spawning %v", cmd.Args)
	err = cmd.Start()
	// The parent's copies of inherited descriptors beyond the
	// caller-owned socket (seccomp memfd etc.) can go either way;
	// on success the child holds its own.
	for _, f := range cmd.ExtraFiles[1:] {
		f.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: spawning %s: %w", opts.Exec, err)
	}
	return &Child{cmd: cmd}, nil
}

// unsandboxedCommand runs the loader directly, with only the rlimit
// wrapper. Test use only.
func unsandboxedCommand(ctx context.Context, opts Options) (*exec.Cmd, error) {
	args := rlimitWrapper(opts.memLimit(), opts.Exec, loaderArgs()...)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.ExtraFiles = []*os.File{opts.ChildSocket}
	return cmd, nil
}

// loaderArgs is the argv tail every loader receives: the well-known
// number of its inherited command socket.
func loaderArgs() []string {
	return []string{fmt.Sprintf("--socket-fd=%d", ChildSocketFD)}
}

// rlimitWrapper prefixes argv with a shell ulimit so the address
// space cap is in place before the loader's execve, inside whatever
// namespaces the backend set up. bwrap has no rlimit option of its
// own; /bin/sh is present in every tree we bind.
func rlimitWrapper(limitBytes uint64, exe string, args ...string) []string {
	kib := limitBytes / 1024
	script := fmt.Sprintf(`ulimit -v %d; exec "$0" "$@"`, kib)
	return append([]string{"/bin/sh", "-c", script, exe}, args...)
}
