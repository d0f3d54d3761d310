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

// Package testhooks is a shared package between glycin packages and
// test code, to let tests do gross things that we don't want to
// expose normally.
package testhooks

import (
	"os"
	"sync"
)

var (
	mu           sync.Mutex
	forcedPolicy string
	forcedSet    bool
)

// SetForcedSandboxPolicy pins the sandbox backend for the duration of
// a test, overriding both the configured policy and runtime
// detection. Valid names: "bwrap", "flatpak-spawn", "not-sandboxed".
// The returned func restores the previous state.
func SetForcedSandboxPolicy(name string) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	oldPolicy, oldSet := forcedPolicy, forcedSet
	forcedPolicy, forcedSet = name, true
	return func() {
		mu.Lock()
		defer mu.Unlock()
		forcedPolicy, forcedSet = oldPolicy, oldSet
	}
}

// ForcedSandboxPolicy reports the pinned backend, if any. The
// GLYCIN_TEST_FORCE_SANDBOX environment variable works across
// process boundaries; SetForcedSandboxPolicy within one.
func ForcedSandboxPolicy() (name string, ok bool) {
	mu.Lock()
	defer mu.Unlock()
	if forcedSet {
		return forcedPolicy, true
	}
	if v := os.Getenv("GLYCIN_TEST_FORCE_SANDBOX"); v != "" {
		return v, true
	}
	return "", false
}
