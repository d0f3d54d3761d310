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
	"os"
	"runtime"
	"sync"
	"time"

	"go4.org/jsonconfig"

	"glycin.dev/glycin/internal/rpc"
	"glycin.dev/glycin/internal/shmem"
	"glycin.dev/glycin/pkg/config"
	"glycin.dev/glycin/pkg/memformat"
	"glycin.dev/glycin/pkg/mimetype"
)

// A Creator runs the pipeline backwards: frames are pushed into a
// sandboxed encoder, then Encode returns the output bytes. It
// mirrors the loader session's lifecycle, one child per creator.
type Creator struct {
	session *session
	mime    mimetype.Type
	caps    rpc.EditorCapabilities

	mu          sync.Mutex
	quality     uint8
	compression uint8
	icc         []byte
	metadata    []rpc.MetadataEntry
	frames      int
	closed      bool
}

// A PixelFrame is one frame of input to a Creator. Buf holds
// Height rows of Stride bytes in Format's layout.
type PixelFrame struct {
	Width  uint32
	Height uint32
	Stride uint32
	Format memformat.Format
	Delay  time.Duration // zero for still output
	Buf    []byte
}

// NewCreator spawns the sandboxed encoder registered for mime and
// performs the init exchange, which reports which settings this
// encoder honors. Settings and frames follow; Encode closes the
// deal.
func NewCreator(ctx context.Context, mime mimetype.Type) (*Creator, error) {
	return newCreator(ctx, mime, nil)
}

// NewCreatorWithOptions is NewCreator with a loose option bag passed
// through to the encoder unchanged.
func NewCreatorWithOptions(ctx context.Context, mime mimetype.Type, opts jsonconfig.Obj) (*Creator, error) {
	return newCreator(ctx, mime, opts)
}

// NewCreatorDeferred is the deferred counterpart of NewCreator.
func NewCreatorDeferred(ctx context.Context, mime mimetype.Type) *Future[*Creator] {
	return deferCall(ctx, func(ctx context.Context) (*Creator, error) {
		return NewCreator(ctx, mime)
	})
}

func newCreator(ctx context.Context, mime mimetype.Type, opts jsonconfig.Obj) (*Creator, error) {
	if !mime.Valid() {
		return nil, newError(KindUnknownImageFormat, "invalid MIME type %q", mime)
	}
	entry, ok := config.Default().Lookup(config.RoleEditor, mime)
	if !ok {
		return nil, newError(KindUnknownImageFormat, "no editor for %s", mime)
	}
	s, err := spawnSession(ctx, entry, DefaultSandboxPolicy(), "")
	if err != nil {
		return nil, err
	}
	var caps rpc.EditorCapabilities
	_, err = s.call(ctx, rpc.InitEditor, &rpc.InitEditorArgs{MIMEType: string(mime), Options: opts}, nil, &caps)
	if err != nil {
		s.close()
		return nil, failed(err, "initializing editor for %s", mime)
	}
	c := &Creator{session: s, mime: mime, caps: caps}
	runtime.SetFinalizer(c, (*Creator).finalize)
	return c, nil
}

// SetQuality sets the lossy quality, 0..100. The return value says
// whether this encoder honors it.
func (c *Creator) SetQuality(q uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q > 100 {
		q = 100
	}
	c.quality = q
	return c.caps.HonorsQuality
}

// SetCompression sets the lossless compression effort, 0..100. The
// return value says whether this encoder honors it.
func (c *Creator) SetCompression(level uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level > 100 {
		level = 100
	}
	c.compression = level
	return c.caps.HonorsCompression
}

// SetICCProfile attaches an ICC profile to the output. The return
// value says whether this encoder honors it.
func (c *Creator) SetICCProfile(profile []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.icc = append([]byte(nil), profile...)
	return c.caps.HonorsICC
}

// AddMetadata attaches one key-value pair to the output. Keys are
// plain, without namespace prefixes. The return value says whether
// this encoder writes metadata at all.
func (c *Creator) AddMetadata(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata = append(c.metadata, rpc.MetadataEntry{Key: key, Value: value})
	return c.caps.HonorsMetadata
}

// AddFrame ships one frame's pixels to the encoder through a sealed
// memory file. Frames are encoded in the order added.
func (c *Creator) AddFrame(ctx context.Context, frame PixelFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return newError(KindFailed, "creator closed")
	}
	if !frame.Format.Valid() {
		return newError(KindFailed, "invalid memory format")
	}
	bpp := uint64(frame.Format.BytesPerPixel())
	if frame.Stride == 0 {
		frame.Stride = frame.Width * uint32(bpp)
	}
	if uint64(frame.Stride) < uint64(frame.Width)*bpp {
		return newError(KindFailed, "stride %d below row size %d", frame.Stride, uint64(frame.Width)*bpp)
	}
	if uint64(len(frame.Buf)) < uint64(frame.Stride)*uint64(frame.Height) {
		return newError(KindFailed, "buffer of %d bytes below %dx%d at stride %d",
			len(frame.Buf), frame.Width, frame.Height, frame.Stride)
	}

	buf, err := shmem.Create("glycin-frame", frame.Buf)
	if err != nil {
		return failed(err, "preparing frame buffer")
	}
	defer buf.Close()
	args := &rpc.AddFrameArgs{
		Width:       frame.Width,
		Height:      frame.Height,
		Stride:      frame.Stride,
		Format:      int32(frame.Format),
		DelayMicros: uint64(frame.Delay / time.Microsecond),
	}
	if _, err := c.session.call(ctx, rpc.AddFrame, args, []*os.File{buf}, nil); err != nil {
		c.closeLocked()
		return failed(err, "adding frame")
	}
	c.frames++
	return nil
}

// Encode combines the added frames with the settings and returns the
// encoded bytes. The session ends either way; the creator cannot be
// reused.
func (c *Creator) Encode(ctx context.Context) (*EncodedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, newError(KindFailed, "creator closed")
	}
	if c.frames == 0 {
		return nil, newError(KindFailed, "no frames added")
	}
	args := &rpc.EncodeArgs{
		Quality:     c.quality,
		Compression: c.compression,
		ICCProfile:  c.icc,
		Metadata:    c.metadata,
	}
	var reply rpc.EncodeReply
	files, err := c.session.call(ctx, rpc.Encode, args, nil, &reply)
	if err != nil {
		c.closeLocked()
		return nil, failed(err, "encoding")
	}
	c.closeLocked()
	if len(files) != 1 {
		closeFiles(files)
		return nil, newError(KindFailed, "encode reply carried %d descriptors", len(files))
	}
	m, err := shmem.Map(files[0])
	if err != nil {
		files[0].Close()
		return nil, failed(err, "mapping encoded bytes")
	}
	return &EncodedImage{mapping: m}, nil
}

// EncodeDeferred is the deferred counterpart of Encode.
func (c *Creator) EncodeDeferred(ctx context.Context) *Future[*EncodedImage] {
	return deferCall(ctx, c.Encode)
}

// Close tears the encoder down without producing output. Idempotent;
// Encode calls it implicitly.
func (c *Creator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Creator) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	runtime.SetFinalizer(c, nil)
	c.session.close()
}

func (c *Creator) finalize() { c.Close() }

// An EncodedImage holds the sealed output buffer of an encode,
// mapped read-only.
type EncodedImage struct {
	mapping *shmem.Mapping
}

// Bytes returns the encoded bytes. Valid until Close.
func (e *EncodedImage) Bytes() []byte { return e.mapping.Bytes() }

// Close releases the mapping.
func (e *EncodedImage) Close() error { return e.mapping.Close() }
