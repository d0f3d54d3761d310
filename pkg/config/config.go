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

// Package config enumerates the loaders and editors installed on the
// system by scanning the XDG data search path for configuration
// fragments, and answers MIME type lookups against the result.
//
// Each fragment is a TOML file under
// <data root>/glycin-loaders/<compat>+/conf.d/ with sections named
// "loader:<mime>" or "editor:<mime>":
//
//	["loader:image/png"]
//	Exec = "/usr/libexec/glycin-loaders/glycin-image-rs"
//	ExposeBaseDir = false
//
// Files are read in lexicographic order within each directory; the
// first entry seen for a (role, mime) pair wins across the whole
// search path, so the user data directory beats the system ones.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"glycin.dev/glycin/internal/osutil"
	"glycin.dev/glycin/pkg/mimetype"
)

// Product is the directory name under each XDG data root.
const Product = "glycin-loaders"

// CompatVersion is the active compatibility version: the frozen IPC
// method set and configuration schema this library speaks.
const CompatVersion = 1

// recognizedCompats are the compat directory names this library
// knows. Only those at or below the active version are entered (a
// loader installed there accepts the full active method set); newer
// ones are ignored.
var recognizedCompats = []int{0, 1, 2}

// Role says which side of the pipeline an entry serves.
type Role int

const (
	RoleLoader Role = iota
	RoleEditor
)

func (r Role) String() string {
	if r == RoleEditor {
		return "editor"
	}
	return "loader"
}

// An Entry is one immutable loader or editor registration.
type Entry struct {
	MIME              mimetype.Type
	Role              Role
	Exec              string
	CompatVersion     int
	ExposeBaseDir     bool
	FontconfigVisible bool
}

type key struct {
	role Role
	mime mimetype.Type
}

// A Registry caches the scan result. The zero value is ready to use;
// the first lookup triggers the scan and later ones observe the cache
// until Refresh.
type Registry struct {
	mu      sync.RWMutex
	scanned bool
	entries map[key]Entry
	diags   []string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() { defaultRegistry = new(Registry) })
	return defaultRegistry
}

// ResetDefaultForTest invalidates the process-wide registry's cache so
// a test can rescan under a different GLYCIN_DATA_DIR. The registry
// value itself is kept; holders of Default() see the rescan too.
func ResetDefaultForTest() {
	defaultOnce.Do(func() { defaultRegistry = new(Registry) })
	defaultRegistry.Refresh()
}

// Lookup returns the entry registered for (role, mime), if any.
// Absence maps to the unknown-image-format error at the API boundary;
// this layer just reports it.
func (r *Registry) Lookup(role Role, mime mimetype.Type) (Entry, bool) {
	r.ensureScanned()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key{role, mime}]
	return e, ok
}

// MimeTypes returns the sorted set of MIME types with a registered
// entry for role.
func (r *Registry) MimeTypes(role Role) []mimetype.Type {
	r.ensureScanned()
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []mimetype.Type
	for k := range r.entries {
		if k.role == role {
			out = append(out, k.mime)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Diagnostics returns the problems the last scan skipped over:
// unparseable files, sections without an Exec, malformed MIME keys.
// A diagnostic never aborts a scan.
func (r *Registry) Diagnostics() []string {
	r.ensureScanned()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.diags...)
}

// Refresh invalidates the cache; the next lookup rescans.
func (r *Registry) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned = false
	r.entries = nil
	r.diags = nil
}

func (r *Registry) ensureScanned() {
	r.mu.RLock()
	done := r.scanned
	r.mu.RUnlock()
	if done {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanned {
		return
	}
	r.scanLocked()
	r.scanned = true
}

func (r *Registry) scanLocked() {
	r.entries = make(map[key]Entry)
	// Data roots outermost so user-directory entries beat system
	// ones regardless of which compat directory they sit in.
	for _, root := range osutil.DataSearchPath() {
		for _, compat := range recognizedCompats {
			if compat > CompatVersion {
				continue
			}
			dir := filepath.Join(root, Product, fmt.Sprintf("%d+", compat), "conf.d")
			r.scanDirLocked(dir, compat)
		}
	}
}

func (r *Registry) scanDirLocked(dir string, compat int) {
	names, err := os.ReadDir(dir)
	if err != nil {
		// A missing conf.d is the common case, not a diagnostic.
		if !os.IsNotExist(err) {
			r.diags = append(r.diags, fmt.Sprintf("%s: %v", dir, err))
		}
		return
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name() < names[j].Name() })
	for _, de := range names {
		if de.IsDir() {
			continue
		}
		r.scanFileLocked(filepath.Join(dir, de.Name()), compat)
	}
}

// fileSection is the TOML shape of one "loader:<mime>" or
// "editor:<mime>" section.
type fileSection struct {
	Exec              string `toml:"Exec"`
	ExposeBaseDir     bool   `toml:"ExposeBaseDir"`
	FontconfigVisible bool   `toml:"FontconfigVisible"`
}

func (r *Registry) scanFileLocked(path string, compat int) {
	var sections map[string]fileSection
	if _, err := toml.DecodeFile(path, &sections); err != nil {
		r.diags = append(r.diags, fmt.Sprintf("%s: %v", path, err))
		return
	}
	for name, sec := range sections {
		role, mime, ok := parseSectionName(name)
		if !ok {
			r.diags = append(r.diags, fmt.Sprintf("%s: unrecognized section %q", path, name))
			continue
		}
		if sec.Exec == "" {
			r.diags = append(r.diags, fmt.Sprintf("%s: section %q missing Exec", path, name))
			continue
		}
		k := key{role, mime}
		if _, dup := r.entries[k]; dup {
			// Earlier in the search path wins.
			continue
		}
		r.entries[k] = Entry{
			MIME:              mime,
			Role:              role,
			Exec:              sec.Exec,
			CompatVersion:     compat,
			ExposeBaseDir:     sec.ExposeBaseDir,
			FontconfigVisible: sec.FontconfigVisible,
		}
	}
}

func parseSectionName(name string) (Role, mimetype.Type, bool) {
	var role Role
	var rest string
	switch {
	case len(name) > 7 && name[:7] == "loader:":
		role, rest = RoleLoader, name[7:]
	case len(name) > 7 && name[:7] == "editor:":
		role, rest = RoleEditor, name[7:]
	default:
		return 0, "", false
	}
	mime := mimetype.Type(rest)
	if !mime.Valid() {
		return 0, "", false
	}
	return role, mime, true
}
