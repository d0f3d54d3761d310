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

// Package rpc frames the request/response messages exchanged between
// the client library and a sandboxed loader over a connected socket
// pair. Each message is one datagram on a SOCK_SEQPACKET socket: a
// fixed binary header (kind, method, request id, body length)
// followed by a JSON body; file descriptors ride in the socket's
// ancillary channel. Requests on one connection are serialized (the
// client never has more than one outstanding call) and replies
// mirror the request id they answer.
package rpc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Method identifies one of the fixed protocol operations.
type Method uint8

const (
	InitLoader Method = 1 + iota
	NextFrame
	SpecificFrame
	TearDown
	InitEditor
	AddFrame
	Encode
)

var methodNames = map[Method]string{
	InitLoader:    "init_loader",
	NextFrame:     "next_frame",
	SpecificFrame: "specific_frame",
	TearDown:      "tear_down",
	InitEditor:    "init_editor",
	AddFrame:      "add_frame",
	Encode:        "encode",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// Message kinds.
const (
	kindRequest = 1
	kindReply   = 2
	kindError   = 3
)

// header layout: magic[4] kind[1] method[1] reserved[2] id[16] bodyLen[4]
const headerLen = 28

var magic = [4]byte{'g', 'l', 'y', '1'}

// maxMessage bounds one datagram. Pixel data never travels inline (it
// goes through sealed memory files), so bodies are metadata-sized.
const maxMessage = 1 << 20

// ErrTruncated is returned when a datagram is shorter than its header
// claims or larger than maxMessage.
var ErrTruncated = errors.New("rpc: truncated or oversized message")

// A RemoteError is a protocol-level failure record decoded from an
// error reply. Loaders report failures as {kind, message} pairs; the
// session maps them onto the public error taxonomy.
type RemoteError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return e.Kind + ": " + e.Message
}

// A Conn is one end of a connected socket pair speaking the framed
// protocol. It is safe for concurrent use; calls are serialized.
type Conn struct {
	mu sync.Mutex // serializes Call

	// f is nil once the connection is closed or poisoned.
	f atomic.Pointer[os.File]
}

// NewConn wraps an already-connected SOCK_SEQPACKET descriptor.
// The Conn takes ownership of f.
func NewConn(f *os.File) *Conn {
	c := new(Conn)
	c.f.Store(f)
	return c
}

// SocketPair creates the command channel: a connected SOCK_SEQPACKET
// pair. The parent keeps the returned Conn; the child end is handed
// to the sandbox launcher for fd inheritance.
func SocketPair() (parent *Conn, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: socketpair: %w", err)
	}
	parent = NewConn(os.NewFile(uintptr(fds[0]), "glycin-rpc-parent"))
	child = os.NewFile(uintptr(fds[1]), "glycin-rpc-child")
	return parent, child, nil
}

// Close closes the connection's socket. A peer blocked in Serve
// observes the closed socket and returns.
func (c *Conn) Close() error {
	f := c.f.Swap(nil)
	if f == nil {
		return nil
	}
	return f.Close()
}

// Call sends one request and blocks until its reply arrives or ctx is
// done. args is JSON-encoded into the body; files travel as ancillary
// descriptors. On a normal reply the body is decoded into reply (if
// non-nil) and any descriptors that rode along are returned; the
// caller owns them. An error reply decodes into *RemoteError.
//
// A ctx expiry or any framing violation poisons the connection: the
// socket is closed and the caller must tear down the session. Partial
// reads after a deadline are never resumed.
func (c *Conn) Call(ctx context.Context, m Method, args interface{}, files []*os.File, reply interface{}) ([]*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f.Load() == nil {
		return nil, errors.New("rpc: connection closed")
	}

	id := uuid.New()
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("rpc: encoding %v args: %w", m, err)
	}
	if err := c.send(kindRequest, m, id, body, files); err != nil {
		c.poison()
		return nil, err
	}

	for {
		kind, method, gotID, rbody, rfiles, err := c.recv(ctx)
		if err != nil {
			c.poison()
			return nil, err
		}
		if gotID != id || method != m {
			// Unsolicited or stale message; the protocol forbids both.
			closeAll(rfiles)
			c.poison()
			return nil, fmt.Errorf("rpc: unexpected reply %v id=%s to %v id=%s", method, gotID, m, id)
		}
		switch kind {
		case kindReply:
			if reply != nil {
				if err := json.Unmarshal(rbody, reply); err != nil {
					closeAll(rfiles)
					c.poison()
					return nil, fmt.Errorf("rpc: decoding %v reply: %w", m, err)
				}
			}
			return rfiles, nil
		case kindError:
			closeAll(rfiles)
			re := new(RemoteError)
			if err := json.Unmarshal(rbody, re); err != nil {
				re = &RemoteError{Message: string(rbody)}
			}
			return nil, re
		default:
			closeAll(rfiles)
			c.poison()
			return nil, fmt.Errorf("rpc: bad message kind %d", kind)
		}
	}
}

// poison closes the socket after a protocol violation or deadline.
// Later calls fail fast; the child may be killed by the session on
// top of this.
func (c *Conn) poison() {
	if f := c.f.Swap(nil); f != nil {
		f.Close()
	}
}

func (c *Conn) send(kind byte, m Method, id uuid.UUID, body []byte, files []*os.File) error {
	f := c.f.Load()
	if f == nil {
		return errors.New("rpc: connection closed")
	}
	if len(body) > maxMessage {
		return ErrTruncated
	}
	buf := make([]byte, headerLen+len(body))
	copy(buf[0:4], magic[:])
	buf[4] = kind
	buf[5] = byte(m)
	copy(buf[8:24], id[:])
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(body)))
	copy(buf[headerLen:], body)

	var oob []byte
	if len(files) > 0 {
		fds := make([]int, len(files))
		for i, f := range files {
			fds[i] = int(f.Fd())
		}
		oob = unix.UnixRights(fds...)
	}
	if err := unix.Sendmsg(int(f.Fd()), buf, oob, nil, 0); err != nil {
		return fmt.Errorf("rpc: sendmsg: %w", err)
	}
	return nil
}

// recv reads one datagram, honoring ctx via short poll slices so
// cancellation is observed between I/O steps.
func (c *Conn) recv(ctx context.Context) (kind byte, m Method, id uuid.UUID, body []byte, files []*os.File, err error) {
	f := c.f.Load()
	if f == nil {
		err = errors.New("rpc: connection closed")
		return
	}
	fd := int(f.Fd())
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, perr := unix.Poll(pfd, pollSliceMillis(ctx))
		if perr != nil && perr != unix.EINTR {
			err = fmt.Errorf("rpc: poll: %w", perr)
			return
		}
		if n > 0 {
			break
		}
	}

	buf := make([]byte, maxMessage)
	oob := make([]byte, unix.CmsgSpace(maxFds*4))
	n, oobn, flags, _, rerr := unix.Recvmsg(fd, buf, oob, 0)
	if rerr != nil {
		err = fmt.Errorf("rpc: recvmsg: %w", rerr)
		return
	}
	if n == 0 {
		err = errors.New("rpc: connection closed by peer")
		return
	}
	if flags&unix.MSG_TRUNC != 0 || n < headerLen {
		err = ErrTruncated
		return
	}
	files, err = parseRights(oob[:oobn])
	if err != nil {
		return
	}
	if [4]byte(buf[0:4]) != magic {
		closeAll(files)
		files = nil
		err = errors.New("rpc: bad magic")
		return
	}
	kind = buf[4]
	m = Method(buf[5])
	copy(id[:], buf[8:24])
	bodyLen := binary.LittleEndian.Uint32(buf[24:28])
	if int(bodyLen) != n-headerLen {
		closeAll(files)
		files = nil
		err = ErrTruncated
		return
	}
	body = buf[headerLen : headerLen+int(bodyLen)]
	return
}

// maxFds bounds ancillary descriptors per message. The protocol never
// carries more than one.
const maxFds = 4

func parseRights(oob []byte) ([]*os.File, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("rpc: parsing control messages: %w", err)
	}
	var files []*os.File
	for _, cm := range cmsgs {
		fds, err := unix.ParseUnixRights(&cm)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			unix.CloseOnExec(fd)
			files = append(files, os.NewFile(uintptr(fd), "glycin-rpc-fd"))
		}
	}
	return files, nil
}

// pollSliceMillis picks a poll timeout short enough to notice ctx
// cancellation promptly but long enough not to spin.
func pollSliceMillis(ctx context.Context) int {
	const slice = 50 * time.Millisecond
	d := slice
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < d {
			d = until
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return int(d / time.Millisecond)
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
