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

// Wire bodies for the fixed method set. The JSON field names and the
// semantics here are the frozen contract documented under docs/ for
// the current compat version; any change needs a new compat number.

// MetadataEntry is one key-value pair of image metadata. Keys are
// unique and carried in the order the loader enumerated them; values
// are UTF-8. Keys carry no namespace prefixes.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CICP is the Coding-Independent Code Point quadruple per ITU-T
// H.273 describing the color space of returned pixel data.
type CICP struct {
	ColorPrimaries          uint8 `json:"color_primaries"`
	TransferCharacteristics uint8 `json:"transfer_characteristics"`
	MatrixCoefficients      uint8 `json:"matrix_coefficients"`
	VideoFullRangeFlag      uint8 `json:"video_full_range_flag"`
}

// InitLoaderArgs accompanies the encoded-input memory file on
// init_loader. The file descriptor itself rides in the ancillary
// channel, sealed.
type InitLoaderArgs struct {
	MIMEType             string                 `json:"mime_type"`
	ApplyTransformations bool                   `json:"apply_transformations"`
	AcceptedFormats      []int32                `json:"accepted_formats,omitempty"` // empty = all
	Options              map[string]interface{} `json:"options,omitempty"`
}

// ImageInfo is the init_loader reply.
type ImageInfo struct {
	MIMEType    string          `json:"mime_type"`
	Width       uint32          `json:"width"`
	Height      uint32          `json:"height"`
	Orientation uint8           `json:"orientation"` // EXIF 1..8
	FrameCount  uint32          `json:"frame_count"` // 0 = unknown/streaming
	Metadata    []MetadataEntry `json:"metadata,omitempty"`

	// Capability flags for the selected loader, surfaced read-only
	// through the façade.
	SupportsScaleHint bool `json:"supports_scale_hint"`
	SupportsICC       bool `json:"supports_icc"`
}

// FrameArgs is the body of next_frame and specific_frame. For
// specific_frame, FrameIndex selects the frame; next_frame ignores
// it.
type FrameArgs struct {
	FrameIndex uint32 `json:"frame_index,omitempty"`
	MaxWidth   uint32 `json:"max_width,omitempty"`  // 0 = no bound
	MaxHeight  uint32 `json:"max_height,omitempty"` // 0 = no bound
}

// FrameReply describes the sealed pixel buffer attached to the reply.
type FrameReply struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Stride      uint32 `json:"stride"`
	Format      int32  `json:"format"` // memformat.Format code
	DelayMicros uint64 `json:"delay_micros"`
	CICP        *CICP  `json:"cicp,omitempty"`

	// NoMoreFrames is set instead of a buffer when the animation is
	// exhausted; the parent applies the loop policy.
	NoMoreFrames bool `json:"no_more_frames,omitempty"`
}

// InitEditorArgs opens an encoder for the given MIME type. The
// encoder answers with its capabilities before any settings are
// fixed; the settings themselves travel on the encode request.
type InitEditorArgs struct {
	MIMEType string                 `json:"mime_type"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// EditorCapabilities is the init_editor reply: which of the requested
// knobs this encoder honors. The façade turns these into the boolean
// returned from each setter.
type EditorCapabilities struct {
	HonorsICC         bool `json:"honors_icc"`
	HonorsQuality     bool `json:"honors_quality"`
	HonorsCompression bool `json:"honors_compression"`
	HonorsMetadata    bool `json:"honors_metadata"`
}

// AddFrameArgs describes the sealed pixel buffer attached to an
// add_frame request.
type AddFrameArgs struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Stride      uint32 `json:"stride"`
	Format      int32  `json:"format"`
	DelayMicros uint64 `json:"delay_micros"`

	Metadata []MetadataEntry `json:"metadata,omitempty"`
}

// EncodeArgs closes the session: the encoder combines the frames
// added so far with these settings and produces the output bytes.
type EncodeArgs struct {
	Quality     uint8  `json:"quality"`     // 0..100
	Compression uint8  `json:"compression"` // 0..100
	ICCProfile  []byte `json:"icc_profile,omitempty"`

	Metadata []MetadataEntry `json:"metadata,omitempty"`
}

// EncodeReply accompanies the single sealed descriptor holding the
// encoded bytes.
type EncodeReply struct {
	Length uint64 `json:"length"`
}

// ErrorKindNoMoreFrames is the RemoteError kind a loader uses when an
// animation is exhausted; every other kind normalizes to a generic
// failure at the API boundary.
const ErrorKindNoMoreFrames = "no-more-frames"
