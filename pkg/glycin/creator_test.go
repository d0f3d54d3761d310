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
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"glycin.dev/glycin/internal/rpc"
	"glycin.dev/glycin/internal/shmem"
	"glycin.dev/glycin/pkg/memformat"
)

// fakeEditor accumulates frames and "encodes" them by concatenating
// the pixel bytes, so a decode of its output can be compared with the
// input.
type fakeEditor struct {
	caps   rpc.EditorCapabilities
	frames [][]byte
	args   rpc.EncodeArgs
}

func (fe *fakeEditor) Handle(m rpc.Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
	switch m {
	case rpc.InitEditor:
		return &fe.caps, nil, nil
	case rpc.AddFrame:
		if len(files) != 1 {
			return nil, nil, errors.New("no frame buffer")
		}
		mp, err := shmem.Map(files[0])
		if err != nil {
			return nil, nil, err
		}
		fe.frames = append(fe.frames, append([]byte(nil), mp.Bytes()...))
		mp.Close()
		return struct{}{}, nil, nil
	case rpc.Encode:
		if err := rpc.UnmarshalBody(body, &fe.args); err != nil {
			return nil, nil, err
		}
		out := bytes.Join(fe.frames, nil)
		buf, err := shmem.Create("fake-encoded", out)
		if err != nil {
			return nil, nil, err
		}
		return &rpc.EncodeReply{Length: uint64(len(out))}, []*os.File{buf}, nil
	case rpc.TearDown:
		return struct{}{}, nil, nil
	}
	return nil, nil, errors.New("unexpected method " + m.String())
}

func newFakeCreator(t *testing.T, fe *fakeEditor) *Creator {
	t.Helper()
	s := startSession(t, fe)
	var caps rpc.EditorCapabilities
	if _, err := s.call(context.Background(), rpc.InitEditor, &rpc.InitEditorArgs{MIMEType: "image/x-test"}, nil, &caps); err != nil {
		t.Fatal(err)
	}
	return &Creator{session: s, mime: "image/x-test", caps: caps}
}

func TestCreatorEncode(t *testing.T) {
	fe := &fakeEditor{caps: rpc.EditorCapabilities{HonorsQuality: true, HonorsMetadata: true}}
	c := newFakeCreator(t, fe)

	if !c.SetQuality(80) {
		t.Error("SetQuality = false; want honored")
	}
	if c.SetCompression(5) {
		t.Error("SetCompression = true; want not honored")
	}
	if c.SetICCProfile([]byte{1, 2, 3}) {
		t.Error("SetICCProfile = true; want not honored")
	}
	if !c.AddMetadata("comment", "round trip") {
		t.Error("AddMetadata = false; want honored")
	}

	pix := solid(2, 2, [4]byte{9, 8, 7, 0xFF})
	err := c.AddFrame(context.Background(), PixelFrame{
		Width: 2, Height: 2, Format: memformat.R8g8b8a8, Buf: pix,
	})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := c.Encode(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	if !bytes.Equal(enc.Bytes(), pix) {
		t.Errorf("encoded bytes differ from input")
	}
	if fe.args.Quality != 80 {
		t.Errorf("encoder saw quality %d; want 80", fe.args.Quality)
	}
	if len(fe.args.Metadata) != 1 || fe.args.Metadata[0].Key != "comment" {
		t.Errorf("encoder saw metadata %v", fe.args.Metadata)
	}
	if len(fe.args.ICCProfile) != 3 {
		t.Errorf("encoder saw ICC %v; want the 3 set bytes", fe.args.ICCProfile)
	}

	// The session ended with Encode; the creator cannot be reused.
	if _, err := c.Encode(context.Background()); !errors.Is(err, ErrFailed) {
		t.Errorf("second Encode = %v; want ErrFailed", err)
	}
}

// Round trip: what the creator encodes, a loader of the same fake
// format decodes back to identical pixels.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	pix := solid(4, 4, [4]byte{0x11, 0x22, 0x33, 0xFF})

	fe := &fakeEditor{}
	c := newFakeCreator(t, fe)
	if err := c.AddFrame(context.Background(), PixelFrame{
		Width: 4, Height: 4, Format: memformat.R8g8b8a8, Buf: pix,
	}); err != nil {
		t.Fatal(err)
	}
	enc, err := c.Encode(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	fl := &fakeLoader{
		info: rpc.ImageInfo{MIMEType: "image/x-test", Width: 4, Height: 4, Orientation: 1, FrameCount: 1},
		frames: []fakeFrame{{
			width: 4, height: 4, stride: 16,
			format: memformat.R8g8b8a8,
			pix:    append([]byte(nil), enc.Bytes()...),
		}},
	}
	img := loadFake(t, fl, memformat.NewSelection(memformat.R8g8b8a8))
	defer img.Close()
	frame, err := img.NextFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame.MemoryFormat() != memformat.R8g8b8a8 {
		t.Errorf("format = %v", frame.MemoryFormat())
	}
	if !bytes.Equal(frame.Buf(), pix) {
		t.Error("decoded pixels differ from encoded input")
	}
}

func TestAddFrameValidation(t *testing.T) {
	c := newFakeCreator(t, &fakeEditor{})
	err := c.AddFrame(context.Background(), PixelFrame{
		Width: 4, Height: 4, Stride: 8, // below 4 px * 4 bytes
		Format: memformat.R8g8b8a8,
		Buf:    make([]byte, 64),
	})
	if !errors.Is(err, ErrFailed) {
		t.Errorf("bad stride err = %v; want ErrFailed", err)
	}
	err = c.AddFrame(context.Background(), PixelFrame{
		Width: 4, Height: 4,
		Format: memformat.R8g8b8a8,
		Buf:    make([]byte, 10), // short
	})
	if !errors.Is(err, ErrFailed) {
		t.Errorf("short buffer err = %v; want ErrFailed", err)
	}
}

func TestEncodeWithoutFrames(t *testing.T) {
	c := newFakeCreator(t, &fakeEditor{})
	if _, err := c.Encode(context.Background()); !errors.Is(err, ErrFailed) {
		t.Errorf("Encode with no frames = %v; want ErrFailed", err)
	}
}
