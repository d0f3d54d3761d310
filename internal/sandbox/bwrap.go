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

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// bwrapCommand builds the bubblewrap invocation: fresh user, mount,
// pid, ipc, uts and cgroup namespaces, a read-only skeleton of the
// host just big enough to run the loader, a private /tmp, no network,
// and the compiled seccomp program on an inherited descriptor.
func bwrapCommand(ctx context.Context, opts Options) (*exec.Cmd, error) {
	bwrap, err := exec.LookPath("bwrap")
	if err != nil {
		return nil, fmt.Errorf("sandbox: bwrap not found: %w", err)
	}
	secFD, err := seccompFD()
	if err != nil {
		return nil, err
	}

	args := []string{
		"--unshare-user",
		"--unshare-pid",
		"--unshare-net",
		"--unshare-uts",
		"--unshare-ipc",
		"--unshare-cgroup-try",
		"--die-with-parent",
		"--clearenv",
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
	}
	// --clearenv empties the loader's environment; put the allow-list
	// back explicitly.
	for _, kv := range childEnv() {
		k, v, _ := strings.Cut(kv, "=")
		args = append(args, "--setenv", k, v)
	}
	for _, dir := range []string{"/usr", "/etc/ld.so.cache", "/etc/alternatives"} {
		if _, err := os.Stat(dir); err == nil {
			args = append(args, "--ro-bind", dir, dir)
		}
	}
	// Merged-usr distributions keep these as symlinks into /usr;
	// recreate them rather than binding.
	for _, l := range []string{"/bin", "/sbin", "/lib", "/lib64"} {
		if target, err := os.Readlink(l); err == nil {
			args = append(args, "--symlink", target, l)
		} else if _, err := os.Stat(l); err == nil {
			args = append(args, "--ro-bind", l, l)
		}
	}
	// The loader binary itself may live outside /usr (a development
	// build, a test helper).
	if !underDir(opts.Exec, "/usr") {
		args = append(args, "--ro-bind", opts.Exec, opts.Exec)
	}
	if opts.FontconfigVisible {
		for _, dir := range []string{"/etc/fonts", "/usr/share/fonts", "/usr/local/share/fonts"} {
			if _, err := os.Stat(dir); err == nil {
				args = append(args, "--ro-bind", dir, dir)
			}
		}
	}
	if opts.ExposeDir != "" {
		args = append(args, "--ro-bind", opts.ExposeDir, opts.ExposeDir)
	}

	// ExtraFiles[0] is the command socket at ChildSocketFD,
	// ExtraFiles[1] the seccomp program at the next descriptor.
	args = append(args, "--seccomp", fmt.Sprint(ChildSocketFD+1))

	args = append(args, "--")
	args = append(args, rlimitWrapper(opts.memLimit(), opts.Exec, loaderArgs()...)...)

	// Not CommandContext: the session outlives the launch context,
	// and termination goes through Child.Kill.
	cmd := exec.Command(bwrap, args...)
	cmd.ExtraFiles = []*os.File{opts.ChildSocket, secFD}
	return cmd, nil
}

func underDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}
