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

package rpc

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"glycin.dev/glycin/internal/shmem"
)

// startPeer serves h on the child end of a fresh socket pair and
// returns the parent Conn.
func startPeer(t *testing.T, h Handler) *Conn {
	t.Helper()
	parent, childFile, err := SocketPair()
	if err != nil {
		t.Fatal(err)
	}
	child := NewConn(childFile)
	done := make(chan struct{})
	go func() {
		defer close(done)
		child.Serve(context.Background(), h)
	}()
	t.Cleanup(func() {
		parent.Close()
		<-done
		child.Close()
	})
	return parent
}

func TestCallReply(t *testing.T) {
	echo := HandlerFunc(func(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
		var args FrameArgs
		if err := UnmarshalBody(body, &args); err != nil {
			return nil, nil, err
		}
		return &FrameReply{Width: args.MaxWidth, Height: args.MaxHeight}, nil, nil
	})
	conn := startPeer(t, echo)

	var reply FrameReply
	files, err := conn.Call(context.Background(), NextFrame, &FrameArgs{MaxWidth: 640, MaxHeight: 480}, nil, &reply)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files; want 0", len(files))
	}
	if reply.Width != 640 || reply.Height != 480 {
		t.Errorf("reply = %dx%d; want 640x480", reply.Width, reply.Height)
	}
}

func TestCallErrorReply(t *testing.T) {
	failing := HandlerFunc(func(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
		return nil, nil, &RemoteError{Kind: ErrorKindNoMoreFrames, Message: "animation exhausted"}
	})
	conn := startPeer(t, failing)

	_, err := conn.Call(context.Background(), NextFrame, &FrameArgs{}, nil, nil)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v; want *RemoteError", err)
	}
	if re.Kind != ErrorKindNoMoreFrames {
		t.Errorf("kind = %q; want %q", re.Kind, ErrorKindNoMoreFrames)
	}
}

func TestCallPassesDescriptors(t *testing.T) {
	// The peer receives a sealed memory file and sends one back.
	peer := HandlerFunc(func(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
		if len(files) != 1 {
			return nil, nil, errors.New("no input fd")
		}
		in, err := shmem.Map(files[0])
		if err != nil {
			return nil, nil, err
		}
		defer in.Close()
		out, err := shmem.Create("reply-buf", append([]byte("got: "), in.Bytes()...))
		if err != nil {
			return nil, nil, err
		}
		return &EncodeReply{Length: uint64(5 + in.Len())}, []*os.File{out}, nil
	})
	conn := startPeer(t, peer)

	input, err := shmem.Create("input-buf", []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	defer input.Close()

	var reply EncodeReply
	files, err := conn.Call(context.Background(), Encode, struct{}{}, []*os.File{input}, &reply)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d reply files; want 1", len(files))
	}
	m, err := shmem.Map(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if got := string(m.Bytes()); got != "got: hello" {
		t.Errorf("reply buffer = %q; want %q", got, "got: hello")
	}
	if reply.Length != 10 {
		t.Errorf("reply.Length = %d; want 10", reply.Length)
	}
}

func TestCallDeadline(t *testing.T) {
	stall := HandlerFunc(func(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
		time.Sleep(5 * time.Second)
		return &FrameReply{}, nil, nil
	})
	conn := startPeer(t, stall)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := conn.Call(ctx, NextFrame, &FrameArgs{}, nil, nil)
	if err == nil {
		t.Fatal("Call succeeded; want deadline error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Call took %v; want prompt deadline failure", elapsed)
	}
	// The connection is poisoned; later calls fail immediately.
	if _, err := conn.Call(context.Background(), NextFrame, &FrameArgs{}, nil, nil); err == nil {
		t.Error("Call on poisoned connection succeeded; want error")
	}
}

func TestServeStopsOnTearDown(t *testing.T) {
	parent, childFile, err := SocketPair()
	if err != nil {
		t.Fatal(err)
	}
	defer parent.Close()
	child := NewConn(childFile)

	done := make(chan error, 1)
	go func() {
		done <- child.Serve(context.Background(), HandlerFunc(
			func(m Method, body []byte, files []*os.File) (interface{}, []*os.File, error) {
				return struct{}{}, nil, nil
			}))
	}()

	if _, err := parent.Call(context.Background(), TearDown, struct{}{}, nil, nil); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v; want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Serve did not return after tear_down")
	}
}
