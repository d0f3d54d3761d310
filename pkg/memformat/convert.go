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

package memformat

import (
	"fmt"
	"image"
	"image/color"

	ximagedraw "golang.org/x/image/draw"
)

// Convert repacks a pixel buffer of format src into the layout of
// format dst. It performs channel reordering, bit-depth widening or
// narrowing, and premultiplication flips by routing the buffer
// through the standard color model machinery via golang.org/x/image's
// scaler, rather than a hand-written conversion for every format
// pair; rawImage reads and writes each format's channels. Width,
// height and the destination stride are all the caller's
// responsibility; Convert never resamples (source and destination
// cover the same pixel grid).
func Convert(dst []byte, dstStride int, dstFmt Format, src []byte, srcStride int, srcFmt Format, width, height int) error {
	if !srcFmt.Valid() || !dstFmt.Valid() {
		return fmt.Errorf("memformat: invalid format in conversion %s -> %s", srcFmt, dstFmt)
	}
	if len(src) < srcStride*height {
		return fmt.Errorf("memformat: source buffer too small for %dx%d at stride %d", width, height, srcStride)
	}
	if len(dst) < dstStride*height {
		return fmt.Errorf("memformat: destination buffer too small for %dx%d at stride %d", width, height, dstStride)
	}

	srcImg := &rawImage{buf: src, stride: srcStride, format: srcFmt, w: width, h: height}
	dstImg := &rawImage{buf: dst, stride: dstStride, format: dstFmt, w: width, h: height}

	r := image.Rect(0, 0, width, height)
	ximagedraw.NearestNeighbor.Scale(dstImg, r, srcImg, r, ximagedraw.Src, nil)
	return nil
}

// rawImage adapts a raw, stride-addressed pixel buffer in one of the
// 23 memory formats to image.Image/draw.Image, so conversions can
// reuse golang.org/x/image's color-model-aware scaler instead of a
// 23x23 hand-written conversion matrix.
type rawImage struct {
	buf    []byte
	stride int
	format Format
	w, h   int
}

func (r *rawImage) ColorModel() color.Model { return color.NRGBA64Model }
func (r *rawImage) Bounds() image.Rectangle { return image.Rect(0, 0, r.w, r.h) }

func (r *rawImage) At(x, y int) color.Color {
	off := y*r.stride + x*r.format.BytesPerPixel()
	return r.decode(r.buf[off:])
}

func (r *rawImage) Set(x, y int, c color.Color) {
	off := y*r.stride + x*r.format.BytesPerPixel()
	r.encode(r.buf[off:], c)
}

// decode reads the pixel at the front of b (in r.format's native
// layout) and returns it as a canonical, non-premultiplied 64-bit
// color, regardless of the format's own premultiplication or bit
// depth: the color package's own Convert does the narrowing back on
// the way out.
func (r *rawImage) decode(b []byte) color.Color {
	read8 := func(i int) uint32 { return uint32(b[i]) * 0x101 }
	read16 := func(i int) uint32 { return uint32(b[i])<<8 | uint32(b[i+1]) }

	var cr, cg, cb, ca uint32 = 0, 0, 0, 0xffff
	switch r.format {
	case R8g8b8:
		cr, cg, cb = read8(0), read8(1), read8(2)
	case B8g8r8:
		cb, cg, cr = read8(0), read8(1), read8(2)
	case R8g8b8a8, R8g8b8a8Premultiplied:
		cr, cg, cb, ca = read8(0), read8(1), read8(2), read8(3)
	case B8g8r8a8, B8g8r8a8Premultiplied:
		cb, cg, cr, ca = read8(0), read8(1), read8(2), read8(3)
	case A8r8g8b8Premultiplied:
		ca, cr, cg, cb = read8(0), read8(1), read8(2), read8(3)
	case A8b8g8r8Premultiplied:
		ca, cb, cg, cr = read8(0), read8(1), read8(2), read8(3)
	case R16g16b16:
		cr, cg, cb = read16(0), read16(2), read16(4)
	case R16g16b16a16, R16g16b16a16Premultiplied:
		cr, cg, cb, ca = read16(0), read16(2), read16(4), read16(6)
	case G8:
		cr = read8(0)
		cg, cb = cr, cr
	case G8a8, G8a8Premultiplied:
		cr = read8(0)
		cg, cb = cr, cr
		ca = read8(1)
	case G16:
		cr = read16(0)
		cg, cb = cr, cr
	case G16a16, G16a16Premultiplied:
		cr = read16(0)
		cg, cb = cr, cr
		ca = read16(2)
	case Xrgb8888:
		cr, cg, cb = read8(1), read8(2), read8(3)
	default:
		// Float formats are treated at 16-bit integer precision for
		// the purpose of color-model conversion; callers needing
		// exact float round-tripping must avoid a format conversion
		// on that path (see Selection.BestTarget's bit-depth match).
		cr, cg, cb = read16(0), read16(2), read16(4)
		if r.format.HasAlpha() {
			ca = read16(6)
		}
	}
	if r.format.IsPremultiplied() && ca != 0xffff {
		cr = unpremultiply(cr, ca)
		cg = unpremultiply(cg, ca)
		cb = unpremultiply(cb, ca)
	}
	return color.NRGBA64{R: uint16(cr), G: uint16(cg), B: uint16(cb), A: uint16(ca)}
}

func (r *rawImage) encode(b []byte, c color.Color) {
	nc := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	cr, cg, cb, ca := uint32(nc.R), uint32(nc.G), uint32(nc.B), uint32(nc.A)
	if r.format.IsPremultiplied() {
		cr = premultiply(cr, ca)
		cg = premultiply(cg, ca)
		cb = premultiply(cb, ca)
	}
	write8 := func(i int, v uint32) { b[i] = byte(v >> 8) }
	write16 := func(i int, v uint32) { b[i] = byte(v >> 8); b[i+1] = byte(v) }

	switch r.format {
	case R8g8b8:
		write8(0, cr)
		write8(1, cg)
		write8(2, cb)
	case B8g8r8:
		write8(0, cb)
		write8(1, cg)
		write8(2, cr)
	case R8g8b8a8, R8g8b8a8Premultiplied:
		write8(0, cr)
		write8(1, cg)
		write8(2, cb)
		write8(3, ca)
	case B8g8r8a8, B8g8r8a8Premultiplied:
		write8(0, cb)
		write8(1, cg)
		write8(2, cr)
		write8(3, ca)
	case A8r8g8b8Premultiplied:
		write8(0, ca)
		write8(1, cr)
		write8(2, cg)
		write8(3, cb)
	case A8b8g8r8Premultiplied:
		write8(0, ca)
		write8(1, cb)
		write8(2, cg)
		write8(3, cr)
	case R16g16b16:
		write16(0, cr)
		write16(2, cg)
		write16(4, cb)
	case R16g16b16a16, R16g16b16a16Premultiplied:
		write16(0, cr)
		write16(2, cg)
		write16(4, cb)
		write16(6, ca)
	case G8:
		write8(0, luma(cr, cg, cb))
	case G8a8, G8a8Premultiplied:
		write8(0, luma(cr, cg, cb))
		write8(1, ca)
	case G16:
		write16(0, luma(cr, cg, cb))
	case G16a16, G16a16Premultiplied:
		write16(0, luma(cr, cg, cb))
		write16(2, ca)
	case Xrgb8888:
		b[0] = 0xff
		write8(1, cr)
		write8(2, cg)
		write8(3, cb)
	default:
		write16(0, cr)
		write16(2, cg)
		write16(4, cb)
		if r.format.HasAlpha() {
			write16(6, ca)
		}
	}
}

func luma(r, g, b uint32) uint32 {
	return (r*299 + g*587 + b*114) / 1000
}

func premultiply(c, a uint32) uint32 {
	return c * a / 0xffff
}

func unpremultiply(c, a uint32) uint32 {
	if a == 0 {
		return 0
	}
	v := c * 0xffff / a
	if v > 0xffff {
		return 0xffff
	}
	return v
}
