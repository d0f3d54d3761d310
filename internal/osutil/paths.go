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

// Package osutil provides operating system specific path helpers,
// chiefly the XDG data directory walk used to locate loader
// configuration fragments.
package osutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HomeDir returns the path to the current user's home directory.
func HomeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

// DataHome returns the user's XDG data directory,
// ${XDG_DATA_HOME:-~/.local/share}.
func DataHome() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d
	}
	return filepath.Join(HomeDir(), ".local", "share")
}

// DataDirs returns the system XDG data directories,
// ${XDG_DATA_DIRS:-/usr/local/share:/usr/share}, in declared order.
func DataDirs() []string {
	v := os.Getenv("XDG_DATA_DIRS")
	if v == "" {
		return []string{"/usr/local/share", "/usr/share"}
	}
	var dirs []string
	for _, d := range strings.Split(v, ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// DataSearchPath returns the full ordered list of data roots to scan
// for configuration: the user directory first, then each system
// directory. GLYCIN_DATA_DIR, when set, replaces the whole list; it
// exists for tests and local installations.
func DataSearchPath() []string {
	if d := os.Getenv("GLYCIN_DATA_DIR"); d != "" {
		return []string{d}
	}
	return append([]string{DataHome()}, DataDirs()...)
}

// ConfDirs returns the conf.d directories to scan for the given
// product and compat version, one per data root, in search order.
// Each is <root>/<product>/<compat>+/conf.d.
func ConfDirs(product string, compat int) []string {
	suffix := filepath.Join(product, fmt.Sprintf("%d+", compat), "conf.d")
	roots := DataSearchPath()
	dirs := make([]string, 0, len(roots))
	for _, root := range roots {
		dirs = append(dirs, filepath.Join(root, suffix))
	}
	return dirs
}
