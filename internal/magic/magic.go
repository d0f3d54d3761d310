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

// Package magic implements MIME type sniffing of image data based on
// the well-known "magic" number prefixes in the file. The host
// operating system's sniffer is the authoritative oracle; this
// package exists so the client library can run without one.
package magic

import (
	"bytes"
	"encoding/binary"
	"io"
	"net/http"
	"strings"

	"glycin.dev/glycin/pkg/mimetype"
)

// A matchEntry contains rules for matching a byte prefix (typically
// the first 1KB) and, on a match, contains the resulting MIME type.
// A matcher is either a function or an (offset+prefix).
type matchEntry struct {
	// fn specifies a matching function. If set, offset & prefix
	// are not used.
	fn func(prefix []byte) bool

	// offset is how many bytes of the input to ignore before
	// matching the prefix.
	offset int

	// prefix is the bytes to look for at offset.
	prefix []byte

	// mtype is the resulting MIME type, on a match.
	mtype mimetype.Type
}

// matchTable is a list of matchers to match prefixes against. The
// first matching one wins.
//
// usable source: http://www.garykessler.net/library/file_sigs.html
// mime types: http://www.iana.org/assignments/media-types/media-types.xhtml
var matchTable = []matchEntry{
	{prefix: []byte("GIF87a"), mtype: "image/gif"},
	{prefix: []byte("GIF89a"), mtype: "image/gif"},
	{prefix: []byte("\xff\xd8\xff"), mtype: "image/jpeg"},
	{prefix: []byte{137, 'P', 'N', 'G', '\r', '\n', 26, 10}, mtype: "image/png"},
	{prefix: []byte{0x49, 0x49, 0x2A, 0}, mtype: "image/tiff"},
	{prefix: []byte{0x4D, 0x4D, 0, 0x2A}, mtype: "image/tiff"},
	{prefix: []byte{0x4D, 0x4D, 0, 0x2B}, mtype: "image/tiff"},
	{offset: 8, prefix: []byte("WEBP"), mtype: "image/webp"},
	{prefix: []byte("qoif"), mtype: "image/qoi"},
	{prefix: []byte("8BPS"), mtype: "image/vnd.adobe.photoshop"},
	{prefix: []byte("gimp xcf "), mtype: "image/x-xcf"},
	{prefix: []byte("BM"), mtype: "image/bmp"},
	{prefix: []byte("\x00\x00\x01\x00"), mtype: "image/vnd.microsoft.icon"},
	{prefix: []byte("\xff\x0a"), mtype: "image/jxl"},
	{prefix: []byte("\x00\x00\x00\x0cJXL \x0d\x0a\x87\x0a"), mtype: "image/jxl"},
	{prefix: []byte("v/1\x01"), mtype: "image/x-exr"},
	{prefix: []byte("#?RADIANCE\n"), mtype: "image/vnd.radiance"},
	{prefix: []byte("II\x1a\000\000\000HEAPCCDR"), mtype: "image/x-canon-crw"},
	{prefix: []byte("II\x2a\000\x10\000\000\000CR"), mtype: "image/x-canon-cr2"},
	{prefix: []byte("MMOR"), mtype: "image/x-olympus-orf"},
	{prefix: []byte("IIRO"), mtype: "image/x-olympus-orf"},
	{prefix: []byte("IIRS"), mtype: "image/x-olympus-orf"},
	{offset: 12, prefix: []byte("DJVM"), mtype: "image/vnd.djvu"},
	{offset: 12, prefix: []byte("DJVU"), mtype: "image/vnd.djvu"},
	{offset: 4, prefix: []byte("ftypavif"), mtype: "image/avif"},
	{fn: isHEIC, mtype: "image/heic"},
	{fn: isSVG, mtype: "image/svg+xml"},
}

// MIMEType returns the MIME type from the data in the provided header
// of the data. It returns mimetype.Unknown if the type can't be
// determined.
func MIMEType(hdr []byte) mimetype.Type {
	hlen := len(hdr)
	for _, pte := range matchTable {
		if pte.fn != nil {
			if pte.fn(hdr) {
				return pte.mtype
			}
			continue
		}
		plen := pte.offset + len(pte.prefix)
		if hlen > plen && bytes.Equal(hdr[pte.offset:plen], pte.prefix) {
			return pte.mtype
		}
	}
	t := http.DetectContentType(hdr)
	t = strings.Replace(t, "; charset=utf-8", "", 1)
	if strings.HasPrefix(t, "image/") {
		return mimetype.Type(t)
	}
	return mimetype.Unknown
}

// MIMETypeFromReaderAt takes a ReaderAt, sniffs the beginning of it,
// and returns the MIME type if sniffed, else mimetype.Unknown.
func MIMETypeFromReaderAt(ra io.ReaderAt) mimetype.Type {
	var buf [1024]byte
	n, _ := ra.ReadAt(buf[:], 0)
	return MIMEType(buf[:n])
}

var pict = []byte("pict")

// isHEIC reports whether the prefix looks like a BMFF HEIF file for a
// still image. (image/heic type)
//
// We verify it starts with an "ftyp" box of MajorBrand heic, and then
// has a "hdlr" box of HandlerType "pict" (inside a meta box which we
// don't verify). This isn't a compliant parser, so might have false
// positives on invalid inputs, but that's acceptable, as long as it
// doesn't reject any valid HEIC images.
func isHEIC(prefix []byte) bool {
	if len(prefix) < 12 {
		return false
	}
	if string(prefix[4:12]) != "ftypheic" {
		return false
	}

	// Consume the "ftyp" box, required to be first in file.
	ftypLen := binary.BigEndian.Uint32(prefix[:4])
	if uint32(len(prefix)) < ftypLen {
		return false
	}

	// In the meta box, match /hdlr.{8}pict/, but without using a regexp.
	// The handler box always has its handler type 12 bytes into the record.
	const typeOffset = 12 // bytes from "hdlr" literal to 4 byte handler type
	metaBox := prefix[ftypLen:]
	pictPos := bytes.Index(metaBox, pict)
	if pictPos < typeOffset { // including -1
		return false
	}
	return string(metaBox[pictPos-12:pictPos-8]) == "hdlr"
}

// isSVG reports whether the prefix looks like an SVG document: an
// <svg> root element, possibly preceded by an XML declaration,
// comments, and a doctype. Not a compliant XML scanner; good enough
// for routing to the vector loader.
func isSVG(prefix []byte) bool {
	s := prefix
	for {
		s = bytes.TrimLeft(s, " \t\r\n")
		switch {
		case bytes.HasPrefix(s, []byte("<svg")):
			return true
		case bytes.HasPrefix(s, []byte("<?")):
			i := bytes.Index(s, []byte("?>"))
			if i < 0 {
				return false
			}
			s = s[i+2:]
		case bytes.HasPrefix(s, []byte("<!--")):
			i := bytes.Index(s, []byte("-->"))
			if i < 0 {
				return false
			}
			s = s[i+3:]
		case bytes.HasPrefix(s, []byte("<!")):
			i := bytes.IndexByte(s, '>')
			if i < 0 {
				return false
			}
			s = s[i+1:]
		default:
			return false
		}
	}
}
