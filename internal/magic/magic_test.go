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

package magic

import (
	"strings"
	"testing"

	"glycin.dev/glycin/pkg/mimetype"
)

type magicTest struct {
	data string
	want mimetype.Type
}

var tests = []magicTest{
	{data: "GIF89a" + strings.Repeat("\x00", 100), want: "image/gif"},
	{data: "\xff\xd8\xff\xe0" + strings.Repeat("\x00", 100), want: "image/jpeg"},
	{data: "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 100), want: "image/png"},
	{data: "II\x2a\x00" + strings.Repeat("\x00", 100), want: "image/tiff"},
	{data: "RIFF\x00\x00\x00\x00WEBPVP8 " + strings.Repeat("\x00", 100), want: "image/webp"},
	{data: "qoif" + strings.Repeat("\x00", 100), want: "image/qoi"},
	{data: "BM" + strings.Repeat("\x00", 100), want: "image/bmp"},
	{data: "\xff\x0a" + strings.Repeat("\x00", 100), want: "image/jxl"},
	{data: "<?xml version=\"1.0\"?>\n<!-- made by hand -->\n<svg xmlns=\"http://www.w3.org/2000/svg\"/>", want: "image/svg+xml"},
	{data: "<svg/>", want: "image/svg+xml"},
	{data: "\x00\x00\x00\x18ftypavif" + strings.Repeat("\x00", 100), want: "image/avif"},
	{data: "not an image at all, just some text.", want: mimetype.Unknown},
	{data: strings.Repeat("\x01\x02\x03\x04", 64), want: mimetype.Unknown},
}

func TestMIMEType(t *testing.T) {
	for i, tt := range tests {
		if got := MIMEType([]byte(tt.data)); got != tt.want {
			t.Errorf("%d. MIMEType = %q; want %q", i, got, tt.want)
		}
	}
}

func TestMIMETypeFromReaderAt(t *testing.T) {
	ra := strings.NewReader("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 100))
	if got := MIMETypeFromReaderAt(ra); got != "image/png" {
		t.Errorf("MIMETypeFromReaderAt = %q; want image/png", got)
	}
}
