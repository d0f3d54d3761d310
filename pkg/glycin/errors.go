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
	"fmt"
)

// Kind classifies every failure observable at the API boundary.
// Everything a loader, sandbox or socket can do wrong normalizes to
// one of these three; the diagnostic text stays human-readable but
// unstructured.
type Kind int

const (
	// KindUnknownImageFormat: no registry entry for the detected
	// MIME type, or detection itself failed.
	KindUnknownImageFormat Kind = 1 + iota
	// KindNoMoreFrames: the animation is exhausted and looping was
	// disabled.
	KindNoMoreFrames
	// KindFailed is the catch-all: spawn failure, sandbox refusal,
	// protocol violation, loader crash, deadline.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnknownImageFormat:
		return "unknown image format"
	case KindNoMoreFrames:
		return "no more frames"
	case KindFailed:
		return "failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// An Error is the error type this package returns for every failure
// except cancellation, which surfaces as context.Canceled. Match with
// errors.Is against the exported sentinels.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

// Sentinels for errors.Is. Operations never return these directly;
// they return *Error values that Is-match them.
var (
	ErrUnknownImageFormat = &Error{Kind: KindUnknownImageFormat}
	ErrNoMoreFrames       = &Error{Kind: KindNoMoreFrames}
	ErrFailed             = &Error{Kind: KindFailed}
)

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.msg != "" {
		s += ": " + e.msg
	}
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.err }

// Is matches any *Error of the same Kind, so
// errors.Is(err, ErrNoMoreFrames) works regardless of diagnostics.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...)}
}

// failed wraps an internal error as the catch-all kind. Cancellation
// passes through untouched so deferred callers can tell a tripped
// token from a failure; a deadline expiry is a failure like any
// other.
func failed(err error, format string, args ...interface{}) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindFailed, msg: fmt.Sprintf(format, args...), err: err}
}
