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

package testimage

import (
	"bytes"
	"testing"

	"glycin.dev/glycin/internal/magic"
)

func TestOrientationRoundTrip(t *testing.T) {
	for o := 1; o <= 8; o++ {
		data := JPEGWithOrientation(o)
		got, err := Orientation(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("orientation %d: %v", o, err)
		}
		if got != o {
			t.Errorf("orientation = %d; want %d", got, o)
		}
	}
}

func TestSniffsAsJPEG(t *testing.T) {
	if got := magic.MIMEType(JPEGWithOrientation(6)); got != "image/jpeg" {
		t.Errorf("MIMEType = %q; want image/jpeg", got)
	}
}
