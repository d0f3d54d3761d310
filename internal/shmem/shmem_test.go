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

package shmem

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestCreateMapRoundTrip(t *testing.T) {
	want := []byte("pixel data goes here")
	f, err := Create("test-buffer", want)
	if err != nil {
		t.Fatal(err)
	}
	m, err := Map(f)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if !bytes.Equal(m.Bytes(), want) {
		t.Errorf("mapped bytes = %q; want %q", m.Bytes(), want)
	}
	if m.Len() != len(want) {
		t.Errorf("Len = %d; want %d", m.Len(), len(want))
	}
}

func TestCreateIsSealed(t *testing.T) {
	f, err := Create("test-sealed", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := VerifySealed(f); err != nil {
		t.Errorf("VerifySealed = %v; want nil", err)
	}
	// Further writes must be refused by the kernel.
	if _, err := f.Write([]byte("y")); err == nil {
		t.Error("Write on sealed memfd succeeded; want error")
	}
}

func TestMapRejectsUnsealed(t *testing.T) {
	fd, err := unix.MemfdCreate("test-unsealed", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		t.Fatal(err)
	}
	f := os.NewFile(uintptr(fd), "test-unsealed")
	defer f.Close()
	if _, err := f.Write([]byte("not sealed")); err != nil {
		t.Fatal(err)
	}
	if _, err := Map(f); !errors.Is(err, ErrUnsealed) {
		t.Errorf("Map(unsealed) = %v; want ErrUnsealed", err)
	}
}

func TestMapRejectsPartialSeals(t *testing.T) {
	fd, err := unix.MemfdCreate("test-partial", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		t.Fatal(err)
	}
	f := os.NewFile(uintptr(fd), "test-partial")
	defer f.Close()
	if _, err := unix.FcntlInt(f.Fd(), unix.F_ADD_SEALS, unix.F_SEAL_GROW|unix.F_SEAL_SHRINK); err != nil {
		t.Fatal(err)
	}
	if _, err := Map(f); !errors.Is(err, ErrUnsealed) {
		t.Errorf("Map(partially sealed) = %v; want ErrUnsealed", err)
	}
}
