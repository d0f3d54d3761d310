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
	"time"

	"glycin.dev/glycin/internal/shmem"
	"glycin.dev/glycin/pkg/memformat"
)

// CICP is the Coding-Independent Code Point quadruple per ITU-T
// H.273: color primaries, transfer characteristics, matrix
// coefficients, and the video full range flag.
type CICP struct {
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	VideoFullRangeFlag      uint8
}

// A Frame is one decoded image of possibly many. Its pixel buffer is
// either the loader's sealed memory file mapped read-only, or a
// parent-side conversion of it; either way the bytes are stable for
// the frame's lifetime as long as the owning Image stays open.
type Frame struct {
	width  uint32
	height uint32
	stride uint32
	delay  time.Duration
	format memformat.Format
	cicp   *CICP

	mapping *shmem.Mapping // nil when buf is a converted copy
	buf     []byte
}

// Width returns the frame width in pixels.
func (f *Frame) Width() uint32 { return f.width }

// Height returns the frame height in pixels.
func (f *Frame) Height() uint32 { return f.height }

// Stride returns the row stride in bytes. Always at least
// Width times the format's bytes per pixel.
func (f *Frame) Stride() uint32 { return f.stride }

// Delay returns how long an animation shows this frame; zero for
// still images.
func (f *Frame) Delay() time.Duration { return f.delay }

// MemoryFormat returns the pixel layout of Buf. It is always inside
// the accepted selection the loader was configured with.
func (f *Frame) MemoryFormat() memformat.Format { return f.format }

// CICP returns the color space code points, if the loader reported
// them.
func (f *Frame) CICP() (CICP, bool) {
	if f.cicp == nil {
		return CICP{}, false
	}
	return *f.cicp, true
}

// Buf returns the pixel bytes. The slice is read-only when it maps
// the loader's sealed buffer directly; copy out to mutate.
func (f *Frame) Buf() []byte { return f.buf }

// Close releases the frame's share of the buffer early. The mapping
// itself stays valid for other holders until the Image closes.
func (f *Frame) Close() error {
	f.buf = nil
	f.mapping = nil
	return nil
}
