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

// Package mimetype holds the MIME type value used throughout glycin to
// select loaders and editors. MIME sniffing itself is an external
// concern (the host OS, or a caller-supplied detector); this package
// only validates and compares the strings that come back from it.
package mimetype

import "strings"

// Type is a non-empty ASCII string of the form "type/subtype". It is
// the authoritative key for loader and editor selection.
type Type string

// Valid reports whether t has the "type/subtype" shape required by
// the registry. It does not check that either half is a registered
// IANA token; unknown types are handled by lookup failing, not by
// validation rejecting them.
func (t Type) Valid() bool {
	s := string(t)
	if s == "" {
		return false
	}
	slash := strings.IndexByte(s, '/')
	if slash <= 0 || slash == len(s)-1 {
		return false
	}
	if strings.IndexByte(s[slash+1:], '/') != -1 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// Unknown is the sentinel MIME type returned by a sniffer that could
// not identify the byte stream.
const Unknown Type = "application/octet-stream"

// String implements fmt.Stringer.
func (t Type) String() string { return string(t) }
