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

// Package memformat enumerates the fixed set of pixel memory layouts
// that cross the glycin IPC boundary, and the bitset used by clients
// to say which of them they're willing to accept.
package memformat

import "fmt"

// Format is a tagged variant over the known pixel memory layouts:
// channel order, bit depth, float-vs-integer storage, and alpha
// premultiplication.
type Format int

// The full set of 23 recognized memory formats.
const (
	R8g8b8 Format = iota
	B8g8r8
	R8g8b8a8
	R8g8b8a8Premultiplied
	B8g8r8a8
	B8g8r8a8Premultiplied
	A8r8g8b8Premultiplied
	A8b8g8r8Premultiplied
	R16g16b16
	R16g16b16a16
	R16g16b16a16Premultiplied
	R16g16b16Float
	R16g16b16a16Float
	R32g32b32Float
	R32g32b32a32Float
	R32g32b32a32FloatPremultiplied
	G8
	G8a8
	G8a8Premultiplied
	G16
	G16a16
	G16a16Premultiplied
	Xrgb8888

	numFormats
)

type traits struct {
	name            string
	bytesPerPixel   int
	hasAlpha        bool
	isPremultiplied bool
	isFloat         bool
	bitDepth        int
}

var table = [numFormats]traits{
	R8g8b8:                         {"R8g8b8", 3, false, false, false, 8},
	B8g8r8:                         {"B8g8r8", 3, false, false, false, 8},
	R8g8b8a8:                       {"R8g8b8a8", 4, true, false, false, 8},
	R8g8b8a8Premultiplied:          {"R8g8b8a8Premultiplied", 4, true, true, false, 8},
	B8g8r8a8:                       {"B8g8r8a8", 4, true, false, false, 8},
	B8g8r8a8Premultiplied:          {"B8g8r8a8Premultiplied", 4, true, true, false, 8},
	A8r8g8b8Premultiplied:          {"A8r8g8b8Premultiplied", 4, true, true, false, 8},
	A8b8g8r8Premultiplied:          {"A8b8g8r8Premultiplied", 4, true, true, false, 8},
	R16g16b16:                      {"R16g16b16", 6, false, false, false, 16},
	R16g16b16a16:                   {"R16g16b16a16", 8, true, false, false, 16},
	R16g16b16a16Premultiplied:      {"R16g16b16a16Premultiplied", 8, true, true, false, 16},
	R16g16b16Float:                 {"R16g16b16Float", 6, false, false, true, 16},
	R16g16b16a16Float:              {"R16g16b16a16Float", 8, true, false, true, 16},
	R32g32b32Float:                 {"R32g32b32Float", 12, false, false, true, 32},
	R32g32b32a32Float:              {"R32g32b32a32Float", 16, true, false, true, 32},
	R32g32b32a32FloatPremultiplied: {"R32g32b32a32FloatPremultiplied", 16, true, true, true, 32},
	G8:                             {"G8", 1, false, false, false, 8},
	G8a8:                           {"G8a8", 2, true, false, false, 8},
	G8a8Premultiplied:              {"G8a8Premultiplied", 2, true, true, false, 8},
	G16:                            {"G16", 2, false, false, false, 16},
	G16a16:                         {"G16a16", 4, true, false, false, 16},
	G16a16Premultiplied:            {"G16a16Premultiplied", 4, true, true, false, 16},
	Xrgb8888:                       {"Xrgb8888", 4, false, false, false, 8},
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool { return f >= 0 && f < numFormats }

// String returns the format's wire name, e.g. "R8g8b8a8Premultiplied".
func (f Format) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return table[f].name
}

// BytesPerPixel returns the number of bytes one pixel occupies in this
// format. A frame's stride must be at least width*BytesPerPixel.
func (f Format) BytesPerPixel() int {
	if !f.Valid() {
		return 0
	}
	return table[f].bytesPerPixel
}

// HasAlpha reports whether the format carries an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Valid() && table[f].hasAlpha
}

// IsPremultiplied reports whether color channels are premultiplied by
// alpha. Always false when HasAlpha is false.
func (f Format) IsPremultiplied() bool {
	return f.Valid() && table[f].isPremultiplied
}

// IsFloat reports whether channels are stored as floating point.
func (f Format) IsFloat() bool {
	return f.Valid() && table[f].isFloat
}

// BitDepth returns the per-channel bit depth (8, 16, or 32).
func (f Format) BitDepth() int {
	if !f.Valid() {
		return 0
	}
	return table[f].bitDepth
}

// channelSet groups formats that share a channel layout (RGB vs BGR
// vs gray vs gray+alpha), used by Selection.BestTarget to prefer
// same-channel-set targets over cross-layout ones.
func (f Format) channelSet() int {
	switch f {
	case R8g8b8, R8g8b8a8, R8g8b8a8Premultiplied, R16g16b16, R16g16b16a16,
		R16g16b16a16Premultiplied, R16g16b16Float, R16g16b16a16Float,
		R32g32b32Float, R32g32b32a32Float, R32g32b32a32FloatPremultiplied:
		return 0 // RGB(A)
	case B8g8r8, B8g8r8a8, B8g8r8a8Premultiplied:
		return 1 // BGR(A)
	case A8r8g8b8Premultiplied:
		return 2 // ARGB
	case A8b8g8r8Premultiplied:
		return 3 // ABGR
	case G8, G8a8, G8a8Premultiplied, G16, G16a16, G16a16Premultiplied:
		return 4 // gray(+alpha)
	case Xrgb8888:
		return 5 // padded opaque
	default:
		return -1
	}
}
