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

// Package shmem creates, seals, receives and maps the anonymous
// memory files that carry encoded input and decoded pixel data across
// the loader process boundary.
//
// The sender creates a memfd, writes its bytes, then seals it against
// writes, growth, shrinking and further sealing, in that order. The
// receiver refuses any descriptor that does not carry all four seals:
// once verified, the mapping is immutable for every holder and can be
// handed to callers without a copy.
package shmem

import (
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// sealAll is the full seal set required on every descriptor crossing
// the IPC boundary.
const sealAll = unix.F_SEAL_WRITE | unix.F_SEAL_GROW | unix.F_SEAL_SHRINK | unix.F_SEAL_SEAL

// ErrUnsealed is returned when a received memory file is missing one
// or more of the required seals. The session must treat this as a
// protocol error and abort.
var ErrUnsealed = errors.New("shmem: memory file is not fully sealed")

// Create returns a new sealed anonymous memory file holding data. The
// returned *os.File owns the descriptor; closing it does not
// invalidate copies already sent to a peer.
func Create(name string, data []byte) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("shmem: memfd_create: %w", err)
	}
	f := os.NewFile(uintptr(fd), name)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: write: %w", err)
	}
	if err := Seal(f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Seal applies, in order, the write, grow, shrink and seal seals to
// f. After Seal returns no holder of the descriptor can change the
// file's size or contents.
func Seal(f *os.File) error {
	for _, seal := range []int{unix.F_SEAL_WRITE, unix.F_SEAL_GROW, unix.F_SEAL_SHRINK, unix.F_SEAL_SEAL} {
		if _, err := unix.FcntlInt(f.Fd(), unix.F_ADD_SEALS, seal); err != nil {
			return fmt.Errorf("shmem: F_ADD_SEALS: %w", err)
		}
	}
	return nil
}

// VerifySealed checks that all four required seals are present on f.
func VerifySealed(f *os.File) error {
	seals, err := unix.FcntlInt(f.Fd(), unix.F_GET_SEALS, 0)
	if err != nil {
		return fmt.Errorf("shmem: F_GET_SEALS: %w", err)
	}
	if seals&sealAll != sealAll {
		return ErrUnsealed
	}
	return nil
}

// A Mapping is a received memory file mapped read-only into this
// process. The underlying bytes stay valid until Close.
type Mapping struct {
	f    *os.File
	data mmap.MMap
}

// Map verifies that f carries the full seal set and maps it
// read-only. Map takes ownership of f on success; Close releases both
// the mapping and the descriptor.
func Map(f *os.File) (*Mapping, error) {
	if err := VerifySealed(f); err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("shmem: mmap: %w", err)
	}
	return &Mapping{f: f, data: data}, nil
}

// Bytes returns the mapped contents. The slice is read-only; writing
// through it faults.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the length of the mapped region.
func (m *Mapping) Len() int { return len(m.data) }

// Close unmaps the region and closes the descriptor. Safe to call
// more than once.
func (m *Mapping) Close() error {
	if m.data != nil {
		if err := m.data.Unmap(); err != nil {
			return err
		}
		m.data = nil
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}
