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

// Package glycin loads, decodes, edits and re-encodes images of many
// formats while keeping the format-specific code in short-lived,
// sandboxed child processes. A Loader produces an Image, an Image
// produces Frames, and a Creator runs the pipeline backwards into
// encoded bytes. Every blocking operation has a deferred counterpart
// returning a Future.
package glycin

import (
	"context"
	"io"
	"os"
	"runtime"

	"go4.org/jsonconfig"

	"glycin.dev/glycin/internal/rpc"
	"glycin.dev/glycin/internal/shmem"
	"glycin.dev/glycin/pkg/config"
	"glycin.dev/glycin/pkg/env"
	"glycin.dev/glycin/pkg/memformat"
	"glycin.dev/glycin/pkg/mimetype"
)

// A Loader configures how one image gets decoded. Loaders are not
// safe for concurrent use; each Load spawns its own session.
type Loader struct {
	src      *source
	mime     mimetype.Type // override; "" = sniff
	accepted memformat.Selection
	policy   SandboxPolicy
	applyT   bool
	options  jsonconfig.Obj
	registry *config.Registry
}

// NewLoaderFile decodes the file at path. The file is read in the
// parent; only its bytes cross into the sandbox, via a sealed memory
// file.
func NewLoaderFile(path string) *Loader {
	return newLoader(fileSource(path))
}

// NewLoaderBytes decodes an in-memory byte stream.
func NewLoaderBytes(data []byte) *Loader {
	return newLoader(bytesSource(data))
}

// NewLoaderReader decodes the contents of r, which is read fully
// before the loader child is spawned.
func NewLoaderReader(r io.Reader) *Loader {
	return newLoader(readerSource(r))
}

func newLoader(src *source) *Loader {
	return &Loader{
		src:      src,
		accepted: memformat.All,
		policy:   DefaultSandboxPolicy(),
		applyT:   true,
		registry: config.Default(),
	}
}

// SetMimeType skips sniffing and selects the loader for mime
// directly.
func (l *Loader) SetMimeType(mime mimetype.Type) { l.mime = mime }

// SetAcceptedMemoryFormats restricts the pixel formats frames may
// come back in. When a loader emits something outside the selection,
// the session converts in-parent, or fails if no documented transform
// reaches the selection.
func (l *Loader) SetAcceptedMemoryFormats(sel memformat.Selection) { l.accepted = sel }

// SetSandboxPolicy overrides the process default for this loader.
func (l *Loader) SetSandboxPolicy(p SandboxPolicy) { l.policy = p }

// SetApplyTransformations controls whether the loader bakes the EXIF
// orientation into returned buffers (the default). When disabled the
// Image still reports the exact orientation and the caller applies
// the correction.
func (l *Loader) SetApplyTransformations(apply bool) { l.applyT = apply }

// SetLoaderOptions attaches a loose option bag passed through to the
// loader unchanged. Unknown keys are ignored by loaders.
func (l *Loader) SetLoaderOptions(opts jsonconfig.Obj) { l.options = opts }

// Load spawns the sandboxed loader, performs the init exchange, and
// returns the image handle. The handle owns the session; Close it
// (or drop every reference) to release the child.
func (l *Loader) Load(ctx context.Context) (*Image, error) {
	data, err := l.src.load()
	if err != nil {
		return nil, failed(err, "reading input")
	}
	mime := l.mime
	if mime == "" {
		mime, _ = l.src.sniff()
	}
	if !mime.Valid() || mime == mimetype.Unknown {
		return nil, newError(KindUnknownImageFormat, "could not detect an image format")
	}
	entry, ok := l.registry.Lookup(config.RoleLoader, mime)
	if !ok {
		return nil, newError(KindUnknownImageFormat, "no loader for %s", mime)
	}

	exposeDir := ""
	if entry.ExposeBaseDir {
		exposeDir = l.src.baseDir()
	}
	s, err := spawnSession(ctx, entry, l.policy, exposeDir)
	if err != nil {
		return nil, err
	}

	input, err := shmem.Create("glycin-input", data)
	if err != nil {
		s.close()
		return nil, failed(err, "preparing input buffer")
	}
	args := &rpc.InitLoaderArgs{
		MIMEType:             string(mime),
		ApplyTransformations: l.applyT,
		Options:              l.options,
	}
	if l.accepted != memformat.All {
		for _, f := range l.accepted.Formats() {
			args.AcceptedFormats = append(args.AcceptedFormats, int32(f))
		}
	}
	var info rpc.ImageInfo
	_, err = s.call(ctx, rpc.InitLoader, args, []*os.File{input}, &info)
	input.Close()
	if err != nil {
		s.close()
		return nil, failed(err, "initializing loader for %s", mime)
	}
	if info.Orientation == 0 {
		info.Orientation = 1
	}
	if info.Orientation > 8 {
		s.close()
		return nil, newError(KindFailed, "loader returned orientation %d", info.Orientation)
	}

	img := &Image{
		session:  s,
		mime:     mime,
		info:     info,
		accepted: l.accepted,
	}
	// Backstop for callers that drop the handle without Close; the
	// session and mappings must not outlive it.
	runtime.SetFinalizer(img, (*Image).finalize)
	env.Logf("loader: %s initialized, %dx%d, %d frames", mime, info.Width, info.Height, info.FrameCount)
	return img, nil
}

// LoadDeferred is the deferred counterpart of Load. Cancelling ctx
// trips the operation and resolves the future with the cancellation
// error.
func (l *Loader) LoadDeferred(ctx context.Context) *Future[*Image] {
	return deferCall(ctx, l.Load)
}
