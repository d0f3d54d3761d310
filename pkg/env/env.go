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

// Package env detects what sort of environment glycin is running in:
// whether the current process itself lives inside a Flatpak sandbox,
// and whether that sandbox is an installed app or a development build.
package env

import (
	"log"
	"os"
	"strings"
	"sync"
)

// IsDebug reports whether verbose sandbox and session diagnostics are
// enabled via GLYCIN_DEBUG.
func IsDebug() bool {
	v := os.Getenv("GLYCIN_DEBUG")
	return v != "" && v != "0" && v != "false"
}

// Logf logs when GLYCIN_DEBUG is set; otherwise it is a no-op.
func Logf(format string, args ...interface{}) {
	if IsDebug() {
		log.Printf(format, args...)
	}
}

var (
	flatpakOnce  sync.Once
	inFlatpak    bool
	flatpakAppID string
)

// flatpakInfoPath is a var for tests.
var flatpakInfoPath = "/.flatpak-info"

// InFlatpak reports whether this process is running inside a Flatpak
// sandbox, detected by the presence of /.flatpak-info.
func InFlatpak() bool {
	flatpakOnce.Do(detectFlatpak)
	return inFlatpak
}

// FlatpakAppID returns the application id from /.flatpak-info, or ""
// when not in a Flatpak.
func FlatpakAppID() string {
	flatpakOnce.Do(detectFlatpak)
	return flatpakAppID
}

// IsDevFlatpak reports whether the surrounding Flatpak is a
// development build, identified by an app id ending in "Devel".
// Development builds may lack the runtime pieces required to nest
// another sandbox, so the launcher degrades to running loaders
// unsandboxed there.
func IsDevFlatpak() bool {
	flatpakOnce.Do(detectFlatpak)
	return inFlatpak && strings.HasSuffix(flatpakAppID, "Devel")
}

func detectFlatpak() {
	data, err := os.ReadFile(flatpakInfoPath)
	if err != nil {
		return
	}
	inFlatpak = true
	flatpakAppID = parseFlatpakAppID(string(data))
}

// parseFlatpakAppID pulls the "name" key out of the [Application]
// section of a flatpak-info keyfile.
func parseFlatpakAppID(s string) string {
	inApp := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") {
			inApp = line == "[Application]"
			continue
		}
		if !inApp {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok && strings.TrimSpace(k) == "name" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
