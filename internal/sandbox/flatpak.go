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
)

// flatpakSpawnCommand builds the portal invocation used when the
// parent itself runs inside a Flatpak: flatpak-spawn restarts the app
// with a tightened sandbox, no network, and each requested path
// exposed read-only. The portal installs its own seccomp policy, so
// none is layered here; the rlimit still is, via prlimit before exec.
func flatpakSpawnCommand(ctx context.Context, opts Options) (*exec.Cmd, error) {
	spawn, err := exec.LookPath("flatpak-spawn")
	if err != nil {
		return nil, fmt.Errorf("sandbox: flatpak-spawn not found: %w", err)
	}
	args := []string{
		"--sandbox",
		"--no-network",
		"--watch-bus",
		fmt.Sprintf("--forward-fd=%d", ChildSocketFD),
	}
	if opts.ExposeDir != "" {
		args = append(args, "--sandbox-expose-path-ro="+opts.ExposeDir)
	}
	if opts.FontconfigVisible {
		for _, dir := range []string{"/etc/fonts", "/usr/share/fonts"} {
			if _, err := os.Stat(dir); err == nil {
				args = append(args, "--sandbox-expose-path-ro="+dir)
			}
		}
	}
	args = append(args, "--")
	args = append(args, "prlimit", fmt.Sprintf("--as=%d", opts.memLimit()), "--")
	args = append(args, opts.Exec)
	args = append(args, loaderArgs()...)

	cmd := exec.Command(spawn, args...)
	cmd.ExtraFiles = []*os.File{opts.ChildSocket}
	return cmd, nil
}
