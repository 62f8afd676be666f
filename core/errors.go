// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "fmt"

// Kind is the closed set of error categories every core operation can
// return. Adapters (FUSE, socket, CLI) map a Kind onto their own wire
// representation; the core itself never returns anything outside this set.
type Kind int

const (
	KindNotFound Kind = iota
	KindAlreadyExists
	KindAccessDenied
	KindInvalidArgument
	KindInvalidName
	KindNotADirectory
	KindIsADirectory
	KindBusy
	KindTooManyOpenFiles
	KindNoSpace
	KindUnsupported
	KindIo
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidName:
		return "invalid_name"
	case KindNotADirectory:
		return "not_a_directory"
	case KindIsADirectory:
		return "is_a_directory"
	case KindBusy:
		return "busy"
	case KindTooManyOpenFiles:
		return "too_many_open_files"
	case KindNoSpace:
		return "no_space"
	case KindUnsupported:
		return "unsupported"
	case KindIo:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the only error type a core operation returns. Op names the
// operation that failed (e.g. "open", "mkdir"); Detail is an optional
// human-readable elaboration. Two *Error values compare equal under
// errors.Is when their Kind matches, regardless of Op/Detail, so callers
// write errors.Is(err, core.ErrNotFound) rather than switching on strings.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

// Is implements the errors.Is interface by comparing Kind only, so a
// sentinel like ErrNotFound matches any *Error of the same Kind regardless
// of which operation produced it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// newErr builds an *Error, used internally by vfs_*.go operations.
func newErr(op string, kind Kind, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

func newErrf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is(err, core.ErrXxx) comparisons. Only Kind is
// compared (see Error.Is), so these carry no Op/Detail.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAlreadyExists    = &Error{Kind: KindAlreadyExists}
	ErrAccessDenied     = &Error{Kind: KindAccessDenied}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrInvalidName      = &Error{Kind: KindInvalidName}
	ErrNotADirectory    = &Error{Kind: KindNotADirectory}
	ErrIsADirectory     = &Error{Kind: KindIsADirectory}
	ErrBusy             = &Error{Kind: KindBusy}
	ErrTooManyOpenFiles = &Error{Kind: KindTooManyOpenFiles}
	ErrNoSpace          = &Error{Kind: KindNoSpace}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrIo               = &Error{Kind: KindIo}
)
