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

// Package testimage synthesizes small image fixtures for tests:
// JPEG byte streams carrying a chosen EXIF orientation, so the
// orientation contract can be exercised against real EXIF bytes
// instead of stubs.
package testimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// JPEGWithOrientation returns a minimal JPEG byte stream whose EXIF
// APP1 segment stores the given orientation (1..8). The stream is
// not a decodable picture; it is a carrier for the metadata.
func JPEGWithOrientation(orientation int) []byte {
	if orientation < 1 || orientation > 8 {
		panic(fmt.Sprintf("testimage: orientation %d out of range", orientation))
	}
	tiff := tiffWithOrientation(uint16(orientation))

	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8}) // SOI
	b.Write([]byte{0xFF, 0xE1}) // APP1
	payload := append([]byte("Exif\x00\x00"), tiff...)
	binary.Write(&b, binary.BigEndian, uint16(len(payload)+2))
	b.Write(payload)
	b.Write([]byte{0xFF, 0xD9}) // EOI
	return b.Bytes()
}

// tiffWithOrientation builds a little-endian TIFF structure holding
// one IFD with a single orientation tag.
func tiffWithOrientation(orientation uint16) []byte {
	var b bytes.Buffer
	b.WriteString("II") // little-endian
	binary.Write(&b, binary.LittleEndian, uint16(42))
	binary.Write(&b, binary.LittleEndian, uint32(8)) // IFD0 offset

	binary.Write(&b, binary.LittleEndian, uint16(1))      // entry count
	binary.Write(&b, binary.LittleEndian, uint16(0x0112)) // Orientation
	binary.Write(&b, binary.LittleEndian, uint16(3))      // SHORT
	binary.Write(&b, binary.LittleEndian, uint32(1))      // one value
	binary.Write(&b, binary.LittleEndian, orientation)
	binary.Write(&b, binary.LittleEndian, uint16(0)) // value padding
	binary.Write(&b, binary.LittleEndian, uint32(0)) // no next IFD
	return b.Bytes()
}

// Orientation reads the EXIF orientation from an image byte stream.
func Orientation(r io.Reader) (int, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return 0, err
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, err
	}
	return tag.Int(0)
}
