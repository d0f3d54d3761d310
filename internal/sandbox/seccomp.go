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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Seccomp return actions (linux/seccomp.h).
const (
	retKillProcess = 0x80000000
	retLog         = 0x7ffc0000
	retAllow       = 0x7fff0000
	retErrnoBase   = 0x00050000
)

// seccomp_data offsets for the classic-BPF accessible struct.
const (
	dataOffNr   = 0
	dataOffArch = 4
)

// defaultAction returns the filter's action for syscalls outside the
// allow-list, honoring the GLYCIN_SECCOMP_DEFAULT_ACTION diagnostic
// knob. The production default fails the call with ENOSYS rather than
// killing, so libc fallback paths keep working.
func defaultAction() uint32 {
	switch os.Getenv("GLYCIN_SECCOMP_DEFAULT_ACTION") {
	case "KILL_PROCESS":
		return retKillProcess
	case "LOG":
		return retLog
	default:
		return retErrnoBase | uint32(unix.ENOSYS)
	}
}

// seccompProgram assembles the classic-BPF allow-list program
// installed in every bwrap child before execve. The program checks
// the architecture, then walks the allow-list; anything else gets the
// default action. Wrong-architecture callers are always killed.
func seccompProgram() ([]byte, error) {
	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: dataOffArch, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: auditArch, SkipTrue: 1},
		bpf.RetConstant{Val: retKillProcess},
		bpf.LoadAbsolute{Off: dataOffNr, Size: 4},
	}
	for _, nr := range allowedSyscalls {
		insns = append(insns,
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(nr), SkipFalse: 1},
			bpf.RetConstant{Val: retAllow},
		)
	}
	insns = append(insns, bpf.RetConstant{Val: defaultAction()})

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, fmt.Errorf("sandbox: assembling seccomp filter: %w", err)
	}
	var buf bytes.Buffer
	for _, ri := range raw {
		// struct sock_filter, native-endian; little on every
		// supported arch.
		if err := binary.Write(&buf, binary.LittleEndian, struct {
			Code   uint16
			Jt, Jf uint8
			K      uint32
		}{ri.Op, ri.Jt, ri.Jf, ri.K}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// seccompFD writes the compiled program into a memory file for
// bwrap's --seccomp option, which reads a raw program from an
// inherited descriptor.
func seccompFD() (*os.File, error) {
	prog, err := seccompProgram()
	if err != nil {
		return nil, err
	}
	fd, err := unix.MemfdCreate("glycin-seccomp", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("sandbox: memfd_create: %w", err)
	}
	f := os.NewFile(uintptr(fd), "glycin-seccomp")
	if _, err := f.Write(prog); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
