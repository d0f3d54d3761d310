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

package glycin

import (
	"io"
	"os"
	"path/filepath"

	"glycin.dev/glycin/internal/magic"
	"glycin.dev/glycin/pkg/mimetype"
)

// A source is the encoded input: its bytes, and when file-backed, the
// path whose directory the ExposeBaseDir loader option can mount.
type source struct {
	path string // "" unless file-backed
	read func() ([]byte, error)

	data []byte // populated by load
}

func fileSource(path string) *source {
	return &source{
		path: path,
		read: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

func bytesSource(b []byte) *source {
	return &source{read: func() ([]byte, error) { return b, nil }}
}

func readerSource(r io.Reader) *source {
	return &source{read: func() ([]byte, error) { return io.ReadAll(r) }}
}

// load reads the input once; later calls return the same bytes.
func (s *source) load() ([]byte, error) {
	if s.data == nil {
		data, err := s.read()
		if err != nil {
			return nil, err
		}
		s.data = data
	}
	return s.data, nil
}

// sniff returns the detected MIME type of the input.
func (s *source) sniff() (mimetype.Type, error) {
	data, err := s.load()
	if err != nil {
		return "", err
	}
	return magic.MIMEType(data), nil
}

// baseDir returns the directory containing a file-backed input, for
// loaders with ExposeBaseDir set.
func (s *source) baseDir() string {
	if s.path == "" {
		return ""
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return ""
	}
	return filepath.Dir(abs)
}
