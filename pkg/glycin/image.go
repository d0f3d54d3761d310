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
	"runtime"
	"sync"
	"time"

	"glycin.dev/glycin/internal/rpc"
	"glycin.dev/glycin/internal/shmem"
	"glycin.dev/glycin/pkg/env"
	"glycin.dev/glycin/pkg/memformat"
	"glycin.dev/glycin/pkg/mimetype"
)

// An Image owns one loader session. It answers metadata queries
// locally and streams frames from the sandboxed child on request.
// At most one frame request is in flight at a time.
type Image struct {
	session  *session
	mime     mimetype.Type
	info     rpc.ImageInfo
	accepted memformat.Selection

	mu        sync.Mutex
	pos       uint32 // next frame index to serve
	exhausted bool   // streaming loader said no-more-frames
	closed    bool
	mappings  []*shmem.Mapping // buffers shared with live frames
}

// MimeType returns the MIME type the image was decoded as.
func (img *Image) MimeType() mimetype.Type { return img.mime }

// Width and Height are the loader's early dimension estimate; the
// authoritative size is on each Frame.
func (img *Image) Width() uint32  { return img.info.Width }
func (img *Image) Height() uint32 { return img.info.Height }

// Orientation returns the EXIF orientation, 1..8. When transforms
// are applied (the default) buffers come back already corrected and
// this is 1; when disabled it is the stored value and the caller
// rotates.
func (img *Image) Orientation() uint8 { return img.info.Orientation }

// FrameCount returns the number of frames, or 0 when the loader
// streams without knowing.
func (img *Image) FrameCount() uint32 { return img.info.FrameCount }

// Metadata returns the value for a metadata key.
func (img *Image) Metadata(key string) (string, bool) {
	for _, e := range img.info.Metadata {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// MetadataKeys enumerates the metadata keys in the loader's order.
func (img *Image) MetadataKeys() []string {
	keys := make([]string, 0, len(img.info.Metadata))
	for _, e := range img.info.Metadata {
		keys = append(keys, e.Key)
	}
	return keys
}

// SupportsScaleHint reports whether this image's loader honors the
// max-size hint on frame requests. Vector loaders do; raster loaders
// may not.
func (img *Image) SupportsScaleHint() bool { return img.info.SupportsScaleHint }

// A FrameRequest parameterizes one frame fetch. The zero value is
// not useful; NewFrameRequest applies the defaults (loop on, no size
// bound). A request is consumed by the call it is passed to.
type FrameRequest struct {
	MaxWidth      uint32 // 0 = unbounded
	MaxHeight     uint32
	LoopAnimation bool

	consumed bool
}

// NewFrameRequest returns a request with the default animation
// policy: past the last frame, wrap to frame 0.
func NewFrameRequest() *FrameRequest {
	return &FrameRequest{LoopAnimation: true}
}

// NextFrame fetches the next frame with default options. For still
// images every call returns the sole frame.
func (img *Image) NextFrame(ctx context.Context) (*Frame, error) {
	return img.NextFrameWith(ctx, NewFrameRequest())
}

// NextFrameDeferred is the deferred counterpart of NextFrame.
func (img *Image) NextFrameDeferred(ctx context.Context) *Future[*Frame] {
	return deferCall(ctx, img.NextFrame)
}

// NextFrameWith fetches the next frame under req's policy. With
// LoopAnimation unset, the call after the last frame fails with
// ErrNoMoreFrames and the session terminates.
func (img *Image) NextFrameWith(ctx context.Context, req *FrameRequest) (*Frame, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if req.consumed {
		return nil, newError(KindFailed, "frame request reused")
	}
	req.consumed = true
	if img.closed {
		return nil, newError(KindFailed, "image handle closed")
	}

	// Loop policy, applied in the parent. With a known frame count
	// the wrap never even reaches the loader.
	wrap := false
	if img.info.FrameCount > 0 && img.pos >= img.info.FrameCount {
		wrap = true
	}
	if img.exhausted {
		wrap = true
	}
	if wrap {
		if !req.LoopAnimation {
			img.closeLocked()
			return nil, newError(KindNoMoreFrames, "animation exhausted after %d frames", img.pos)
		}
		img.pos = 0
		img.exhausted = false
		return img.fetchLocked(ctx, rpc.SpecificFrame, &rpc.FrameArgs{
			FrameIndex: 0,
			MaxWidth:   req.MaxWidth,
			MaxHeight:  req.MaxHeight,
		}, req.LoopAnimation)
	}
	return img.fetchLocked(ctx, rpc.NextFrame, &rpc.FrameArgs{
		MaxWidth:  req.MaxWidth,
		MaxHeight: req.MaxHeight,
	}, req.LoopAnimation)
}

// SpecificFrame fetches the frame at index. It also moves the
// animation cursor: the next NextFrame continues after index.
func (img *Image) SpecificFrame(ctx context.Context, index uint32) (*Frame, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.closed {
		return nil, newError(KindFailed, "image handle closed")
	}
	if img.info.FrameCount > 0 && index >= img.info.FrameCount {
		return nil, newError(KindFailed, "frame %d of %d", index, img.info.FrameCount)
	}
	frame, err := img.fetchLocked(ctx, rpc.SpecificFrame, &rpc.FrameArgs{FrameIndex: index}, true)
	if err != nil {
		return nil, err
	}
	img.pos = index + 1
	return frame, nil
}

// SpecificFrameDeferred is the deferred counterpart of SpecificFrame.
func (img *Image) SpecificFrameDeferred(ctx context.Context, index uint32) *Future[*Frame] {
	return deferCall(ctx, func(ctx context.Context) (*Frame, error) {
		return img.SpecificFrame(ctx, index)
	})
}

// fetchLocked issues one frame request and validates, maps, and if
// needed converts the reply buffer. Caller holds img.mu.
func (img *Image) fetchLocked(ctx context.Context, m rpc.Method, args *rpc.FrameArgs, loop bool) (*Frame, error) {
	var reply rpc.FrameReply
	files, err := img.session.call(ctx, m, args, nil, &reply)
	if err != nil {
		var re *rpc.RemoteError
		if errors.As(err, &re) && re.Kind == rpc.ErrorKindNoMoreFrames {
			// Streaming loader (unknown frame count) ran out.
			img.exhausted = true
			if loop && img.pos > 0 {
				img.pos = 0
				img.exhausted = false
				return img.fetchLocked(ctx, rpc.SpecificFrame, &rpc.FrameArgs{
					FrameIndex: 0, MaxWidth: args.MaxWidth, MaxHeight: args.MaxHeight,
				}, false)
			}
			img.closeLocked()
			return nil, newError(KindNoMoreFrames, "animation exhausted")
		}
		img.closeLocked()
		return nil, failed(err, "requesting frame")
	}
	if reply.NoMoreFrames {
		closeFiles(files)
		img.exhausted = true
		if loop && img.pos > 0 {
			img.pos = 0
			img.exhausted = false
			return img.fetchLocked(ctx, rpc.SpecificFrame, &rpc.FrameArgs{
				FrameIndex: 0, MaxWidth: args.MaxWidth, MaxHeight: args.MaxHeight,
			}, false)
		}
		img.closeLocked()
		return nil, newError(KindNoMoreFrames, "animation exhausted")
	}
	if len(files) != 1 {
		closeFiles(files)
		img.closeLocked()
		return nil, newError(KindFailed, "frame reply carried %d descriptors", len(files))
	}

	frame, err := img.buildFrame(&reply, files[0])
	if err != nil {
		img.closeLocked()
		return nil, err
	}
	img.pos++
	return frame, nil
}

// buildFrame verifies the sealed buffer against the reply's geometry
// and brings its format into the accepted selection.
func (img *Image) buildFrame(reply *rpc.FrameReply, file *os.File) (*Frame, error) {
	format := memformat.Format(reply.Format)
	if !format.Valid() {
		file.Close()
		return nil, newError(KindFailed, "loader returned unknown memory format %d", reply.Format)
	}
	bpp := uint64(format.BytesPerPixel())
	if uint64(reply.Stride) < uint64(reply.Width)*bpp {
		file.Close()
		return nil, newError(KindFailed, "stride %d below row size %d", reply.Stride, uint64(reply.Width)*bpp)
	}

	mapping, err := shmem.Map(file)
	if err != nil {
		file.Close()
		return nil, failed(err, "mapping frame buffer")
	}
	if uint64(reply.Stride)*uint64(reply.Height) > uint64(mapping.Len()) {
		mapping.Close()
		return nil, newError(KindFailed, "buffer of %d bytes below %dx%d at stride %d",
			mapping.Len(), reply.Width, reply.Height, reply.Stride)
	}

	frame := &Frame{
		width:  reply.Width,
		height: reply.Height,
		stride: reply.Stride,
		delay:  time.Duration(reply.DelayMicros) * time.Microsecond,
		format: format,
	}
	if reply.CICP != nil {
		frame.cicp = &CICP{
			ColorPrimaries:          reply.CICP.ColorPrimaries,
			TransferCharacteristics: reply.CICP.TransferCharacteristics,
			MatrixCoefficients:      reply.CICP.MatrixCoefficients,
			VideoFullRangeFlag:      reply.CICP.VideoFullRangeFlag,
		}
	}

	if img.accepted.Accepts(format) {
		frame.mapping = mapping
		frame.buf = mapping.Bytes()
		img.mappings = append(img.mappings, mapping)
		return frame, nil
	}

	dst, ok := img.accepted.BestTarget(format)
	if !ok {
		// No documented transform; do not guess.
		env.Logf("image: loader format %v unreachable from accepted selection", format)
		mapping.Close()
		return nil, newError(KindFailed, "no conversion from %v into the accepted formats", format)
	}
	dstStride := int(reply.Width) * dst.BytesPerPixel()
	buf := make([]byte, dstStride*int(reply.Height))
	err = memformat.Convert(buf, dstStride, dst,
		mapping.Bytes(), int(reply.Stride), format,
		int(reply.Width), int(reply.Height))
	mapping.Close()
	if err != nil {
		return nil, failed(err, "converting %v to %v", format, dst)
	}
	frame.format = dst
	frame.stride = uint32(dstStride)
	frame.buf = buf
	return frame, nil
}

// Close tears down the session, releases every buffer mapping still
// shared with frames, and reaps the child. Frames obtained from this
// image must not be read afterwards.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.closeLocked()
	return nil
}

func (img *Image) closeLocked() {
	if img.closed {
		return
	}
	img.closed = true
	runtime.SetFinalizer(img, nil)
	for _, m := range img.mappings {
		m.Close()
	}
	img.mappings = nil
	img.session.close()
}

func (img *Image) finalize() {
	env.Logf("image: %s handle dropped without Close", img.mime)
	img.Close()
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
