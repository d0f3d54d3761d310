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

package memformat

// Selection is a bitset of memory formats a client is willing to
// accept. The zero Selection accepts nothing; use All for "any format
// is acceptable".
type Selection uint32

// All is the reserved selection meaning every known format is
// acceptable.
const All Selection = 1 << 31

// NewSelection builds a Selection from the given formats.
func NewSelection(formats ...Format) Selection {
	var s Selection
	for _, f := range formats {
		s = s.With(f)
	}
	return s
}

// With returns a copy of s that also accepts f.
func (s Selection) With(f Format) Selection {
	if !f.Valid() {
		return s
	}
	return s | (1 << uint(f))
}

// Accepts reports whether f is acceptable under s.
func (s Selection) Accepts(f Format) bool {
	if s == All {
		return f.Valid()
	}
	return f.Valid() && s&(1<<uint(f)) != 0
}

// Formats returns the formats set in s, in ascending Format order. If
// s is All, every known format is returned.
func (s Selection) Formats() []Format {
	var out []Format
	for f := Format(0); f < numFormats; f++ {
		if s.Accepts(f) {
			out = append(out, f)
		}
	}
	return out
}

// BestTarget picks the acceptable format reachable from src by a
// lossless or documented-lossy transform, per the loader session's
// conversion policy (same bit depth first, then same channel set,
// then a premultiplication flip). It returns ok=false if nothing in
// the selection is reachable, which the caller must treat as FAILED
// rather than guessing.
func (s Selection) BestTarget(src Format) (dst Format, ok bool) {
	if s.Accepts(src) {
		return src, true
	}
	candidates := s.Formats()
	if len(candidates) == 0 {
		return 0, false
	}

	score := func(dst Format) (depthMatch, channelMatch, premulFlipOnly int) {
		if dst.BitDepth() == src.BitDepth() && dst.IsFloat() == src.IsFloat() {
			depthMatch = 1
		}
		if dst.channelSet() == src.channelSet() {
			channelMatch = 1
		}
		if dst.HasAlpha() == src.HasAlpha() && dst.channelSet() == src.channelSet() &&
			dst.IsPremultiplied() != src.IsPremultiplied() {
			premulFlipOnly = 1
		}
		return
	}

	best := candidates[0]
	bestDepth, bestChannel, bestPremul := score(best)
	for _, c := range candidates[1:] {
		d, ch, p := score(c)
		if d > bestDepth ||
			(d == bestDepth && ch > bestChannel) ||
			(d == bestDepth && ch == bestChannel && p > bestPremul) {
			best, bestDepth, bestChannel, bestPremul = c, d, ch, p
		}
	}
	// A conversion is only documented when the destination shares the
	// channel set (pure premultiplication flip, possible precision
	// change) or matches bit depth and float-ness (pure repack). A
	// completely unrelated target (different channel set, different
	// depth) is not a transform we claim to understand.
	if bestChannel == 0 && bestDepth == 0 {
		return 0, false
	}
	return best, true
}
