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
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"glycin.dev/glycin/internal/rpc"
	"glycin.dev/glycin/internal/shmem"
	"glycin.dev/glycin/pkg/memformat"
)

// fakeFrame is one frame a fakeLoader serves.
type fakeFrame struct {
	width, height, stride uint32
	format                memformat.Format
	delayMicros           uint64
	pix                   []byte
	cicp                  *rpc.CICP
}

// fakeLoader speaks the loader side of the protocol in-process, so
// session behavior can be tested without spawning children.
type fakeLoader struct {
	info   rpc.ImageInfo
	frames []fakeFrame

	// stall makes frame requests hang, for cancellation tests.
	stall time.Duration

	mu  sync.Mutex
	pos int
}

func (fl *fakeLoader) Handle(m rpc.Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	switch m {
	case rpc.InitLoader:
		return &fl.info, nil, nil
	case rpc.NextFrame:
		if fl.stall > 0 {
			time.Sleep(fl.stall)
		}
		if fl.pos >= len(fl.frames) {
			return nil, nil, &rpc.RemoteError{Kind: rpc.ErrorKindNoMoreFrames, Message: "done"}
		}
		f := fl.frames[fl.pos]
		fl.pos++
		return fl.frameReply(f)
	case rpc.SpecificFrame:
		var args rpc.FrameArgs
		if err := rpc.UnmarshalBody(body, &args); err != nil {
			return nil, nil, err
		}
		if int(args.FrameIndex) >= len(fl.frames) {
			return nil, nil, &rpc.RemoteError{Message: "no such frame"}
		}
		fl.pos = int(args.FrameIndex) + 1
		return fl.frameReply(fl.frames[args.FrameIndex])
	case rpc.TearDown:
		return struct{}{}, nil, nil
	}
	return nil, nil, &rpc.RemoteError{Message: "unexpected method " + m.String()}
}

func (fl *fakeLoader) frameReply(f fakeFrame) (interface{}, []*os.File, error) {
	buf, err := shmem.Create("fake-frame", f.pix)
	if err != nil {
		return nil, nil, err
	}
	return &rpc.FrameReply{
		Width:       f.width,
		Height:      f.height,
		Stride:      f.stride,
		Format:      int32(f.format),
		DelayMicros: f.delayMicros,
		CICP:        f.cicp,
	}, []*os.File{buf}, nil
}

// startSession wires a handler to a fresh in-process session.
func startSession(t *testing.T, h rpc.Handler) *session {
	t.Helper()
	conn, childFile, err := rpc.SocketPair()
	if err != nil {
		t.Fatal(err)
	}
	peer := rpc.NewConn(childFile)
	done := make(chan struct{})
	go func() {
		defer close(done)
		peer.Serve(context.Background(), h)
	}()
	s := &session{conn: conn}
	t.Cleanup(func() {
		s.close()
		<-done
		peer.Close()
	})
	return s
}

// loadFake runs the init exchange against fl and wraps the result in
// an Image, the way Load does after spawning.
func loadFake(t *testing.T, fl *fakeLoader, accepted memformat.Selection) *Image {
	t.Helper()
	s := startSession(t, fl)
	var info rpc.ImageInfo
	if _, err := s.call(context.Background(), rpc.InitLoader, &rpc.InitLoaderArgs{MIMEType: "image/x-test"}, nil, &info); err != nil {
		t.Fatal(err)
	}
	if info.Orientation == 0 {
		info.Orientation = 1
	}
	return &Image{session: s, mime: "image/x-test", info: info, accepted: accepted}
}

// solid returns a w x h buffer of one repeated 4-byte pixel.
func solid(w, h int, pixel [4]byte) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		copy(buf[i*4:], pixel[:])
	}
	return buf
}

func animatedLoader(frameCount int) *fakeLoader {
	fl := &fakeLoader{
		info: rpc.ImageInfo{
			MIMEType:    "image/x-test",
			Width:       2,
			Height:      2,
			Orientation: 1,
			FrameCount:  uint32(frameCount),
			Metadata: []rpc.MetadataEntry{
				{Key: "comment", Value: "hand made"},
				{Key: "author", Value: "nobody"},
			},
		},
	}
	for i := 0; i < frameCount; i++ {
		fl.frames = append(fl.frames, fakeFrame{
			width: 2, height: 2, stride: 8,
			format:      memformat.R8g8b8a8,
			delayMicros: 100000,
			pix:         solid(2, 2, [4]byte{byte(i), byte(i), byte(i), 0xFF}),
		})
	}
	return fl
}

func TestImageInfoAccessors(t *testing.T) {
	img := loadFake(t, animatedLoader(1), memformat.All)
	defer img.Close()
	if img.MimeType() != "image/x-test" {
		t.Errorf("MimeType = %q", img.MimeType())
	}
	if img.Width() != 2 || img.Height() != 2 {
		t.Errorf("size = %dx%d; want 2x2", img.Width(), img.Height())
	}
	if img.Orientation() != 1 {
		t.Errorf("Orientation = %d; want 1", img.Orientation())
	}
	if v, ok := img.Metadata("comment"); !ok || v != "hand made" {
		t.Errorf("Metadata(comment) = %q, %v", v, ok)
	}
	if _, ok := img.Metadata("absent"); ok {
		t.Error("Metadata(absent) = ok")
	}
	keys := img.MetadataKeys()
	if len(keys) != 2 || keys[0] != "comment" || keys[1] != "author" {
		t.Errorf("MetadataKeys = %v; want enumeration order preserved", keys)
	}
}

func TestSingleLoopAnimation(t *testing.T) {
	img := loadFake(t, animatedLoader(3), memformat.All)
	defer img.Close()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		req := NewFrameRequest()
		req.LoopAnimation = false
		frame, err := img.NextFrameWith(ctx, req)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.Delay() != 100*time.Millisecond {
			t.Errorf("frame %d delay = %v; want 100ms", i, frame.Delay())
		}
		if frame.Buf()[0] != byte(i) {
			t.Errorf("frame %d pixel = %d; want %d", i, frame.Buf()[0], i)
		}
	}
	req := NewFrameRequest()
	req.LoopAnimation = false
	_, err := img.NextFrameWith(ctx, req)
	if !errors.Is(err, ErrNoMoreFrames) {
		t.Fatalf("4th frame err = %v; want ErrNoMoreFrames", err)
	}
}

func TestLoopingAnimationIsCyclic(t *testing.T) {
	img := loadFake(t, animatedLoader(3), memformat.All)
	defer img.Close()
	ctx := context.Background()
	// Two full periods: the sequence must be 0 1 2 0 1 2.
	for i := 0; i < 6; i++ {
		frame, err := img.NextFrame(ctx)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if want := byte(i % 3); frame.Buf()[0] != want {
			t.Errorf("call %d pixel = %d; want %d", i, frame.Buf()[0], want)
		}
	}
}

func TestStreamingLoaderLoops(t *testing.T) {
	// FrameCount 0: the parent learns the end only from the loader.
	fl := animatedLoader(2)
	fl.info.FrameCount = 0
	img := loadFake(t, fl, memformat.All)
	defer img.Close()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		frame, err := img.NextFrame(ctx)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if want := byte(i % 2); frame.Buf()[0] != want {
			t.Errorf("call %d pixel = %d; want %d", i, frame.Buf()[0], want)
		}
	}
}

func TestSpecificFrame(t *testing.T) {
	img := loadFake(t, animatedLoader(3), memformat.All)
	defer img.Close()
	frame, err := img.SpecificFrame(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Buf()[0] != 2 {
		t.Errorf("pixel = %d; want 2", frame.Buf()[0])
	}
	if _, err := img.SpecificFrame(context.Background(), 7); err == nil {
		t.Error("out-of-range SpecificFrame succeeded")
	}
}

func TestFormatConversionReorder(t *testing.T) {
	fl := animatedLoader(1)
	fl.frames[0].format = memformat.B8g8r8a8
	fl.frames[0].pix = solid(2, 2, [4]byte{0x10, 0x20, 0x30, 0xFF})
	img := loadFake(t, fl, memformat.NewSelection(memformat.R8g8b8a8))
	defer img.Close()

	frame, err := img.NextFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame.MemoryFormat() != memformat.R8g8b8a8 {
		t.Fatalf("format = %v; want R8g8b8a8", frame.MemoryFormat())
	}
	want := [4]byte{0x30, 0x20, 0x10, 0xFF}
	for px := 0; px < 4; px++ {
		for c := 0; c < 4; c++ {
			if got := frame.Buf()[px*4+c]; got != want[c] {
				t.Fatalf("pixel %d channel %d = %#x; want %#x", px, c, got, want[c])
			}
		}
	}
}

func TestFormatConversionUnpremultiplies(t *testing.T) {
	fl := animatedLoader(1)
	fl.frames[0].format = memformat.B8g8r8a8Premultiplied
	fl.frames[0].pix = solid(2, 2, [4]byte{0x40, 0x40, 0x40, 0x80})
	img := loadFake(t, fl, memformat.NewSelection(memformat.R8g8b8a8))
	defer img.Close()

	frame, err := img.NextFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame.MemoryFormat() != memformat.R8g8b8a8 {
		t.Fatalf("format = %v; want R8g8b8a8", frame.MemoryFormat())
	}
	// 0x40/0x80 premultiplied is 0x7f straight, alpha preserved.
	got := frame.Buf()[:4]
	if got[0] != 0x7f || got[1] != 0x7f || got[2] != 0x7f || got[3] != 0x80 {
		t.Errorf("pixel = %x; want 7f7f7f80", got)
	}
}

func TestNoConversionTargetFails(t *testing.T) {
	fl := animatedLoader(1)
	fl.frames[0].format = memformat.R16g16b16a16Float
	fl.frames[0].pix = make([]byte, 2*2*8)
	fl.frames[0].stride = 16
	// G8 shares neither channel set nor depth with float RGBA.
	img := loadFake(t, fl, memformat.NewSelection(memformat.G8))
	defer img.Close()

	_, err := img.NextFrame(context.Background())
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v; want ErrFailed", err)
	}
}

func TestFrameRequestConsumed(t *testing.T) {
	img := loadFake(t, animatedLoader(2), memformat.All)
	defer img.Close()
	req := NewFrameRequest()
	if _, err := img.NextFrameWith(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := img.NextFrameWith(context.Background(), req); err == nil {
		t.Error("reused request succeeded; want error")
	}
}

func TestCICPPropagated(t *testing.T) {
	fl := animatedLoader(1)
	fl.frames[0].cicp = &rpc.CICP{ColorPrimaries: 9, TransferCharacteristics: 16, MatrixCoefficients: 0, VideoFullRangeFlag: 1}
	img := loadFake(t, fl, memformat.All)
	defer img.Close()
	frame, err := img.NextFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cicp, ok := frame.CICP()
	if !ok || cicp.ColorPrimaries != 9 || cicp.TransferCharacteristics != 16 || cicp.VideoFullRangeFlag != 1 {
		t.Errorf("CICP = %+v, %v", cicp, ok)
	}
}

func TestBadStrideRejected(t *testing.T) {
	fl := animatedLoader(1)
	fl.frames[0].stride = 4 // below 2 pixels * 4 bytes
	img := loadFake(t, fl, memformat.All)
	defer img.Close()
	if _, err := img.NextFrame(context.Background()); !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v; want ErrFailed", err)
	}
}

func TestShortBufferRejected(t *testing.T) {
	fl := animatedLoader(1)
	fl.frames[0].pix = fl.frames[0].pix[:8] // one row missing
	img := loadFake(t, fl, memformat.All)
	defer img.Close()
	if _, err := img.NextFrame(context.Background()); !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v; want ErrFailed", err)
	}
}

func TestDeferredCancellation(t *testing.T) {
	fl := animatedLoader(1)
	fl.stall = 5 * time.Second
	img := loadFake(t, fl, memformat.All)
	defer img.Close()

	ctx, cancel := context.WithCancel(context.Background())
	fut := img.NextFrameDeferred(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()

	start := time.Now()
	_, err := fut.Await(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Await = %v; want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v; want bounded delay", elapsed)
	}
}

func TestDeferredMatchesSynchronous(t *testing.T) {
	img := loadFake(t, animatedLoader(2), memformat.All)
	defer img.Close()
	fut := img.NextFrameDeferred(context.Background())
	frame, err := fut.Await(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame.Width() != 2 || frame.Buf()[0] != 0 {
		t.Errorf("deferred frame = %dx%d pixel %d", frame.Width(), frame.Height(), frame.Buf()[0])
	}
}
