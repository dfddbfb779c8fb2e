package dataset

import (
	"fmt"

	"github.com/holovault/rangestore/pkg/fs"
)

// Code identifies one of the abstract error kinds a dataset operation can
// fail with. The numeric values and names match the eight-entry taxonomy
// plus the DatasetReadOnly addition; they are not meant to be compared by
// number outside diagnostics, only via errors.Is against the sentinels
// below.
type Code int

const (
	// CodeIO covers platform I/O failures; the returned *Error carries the
	// underlying platform error and a short label for the failing
	// primitive (e.g. "seek", "read", "write", "truncate", "create-lock").
	CodeIO Code = iota + 1
	CodeDatasetLocked
	CodeSizeTooSmall
	CodeInvalidIndexFormat
	CodeDataConflict
	CodeReadOutOfBounds
	CodeInvalidArgument
	CodeDeadIndexIterator
	// CodeDatasetReadOnly is the additional ninth code: an attempted
	// mutation on a dataset opened read-only.
	CodeDatasetReadOnly
	// CodeIndexTooLarge is a port-specific addition (see spec design notes
	// on the single-window cache limitation): an index edit would need to
	// touch more than one cache window's worth of bytes at once.
	CodeIndexTooLarge
)

var codeNames = map[Code]string{
	CodeIO:                 "IO",
	CodeDatasetLocked:      "DATASET_LOCKED",
	CodeSizeTooSmall:       "SIZE_TOO_SMALL",
	CodeInvalidIndexFormat: "INVALID_INDEX_FORMAT",
	CodeDataConflict:       "DATA_CONFLICT",
	CodeReadOutOfBounds:    "READ_OUT_OF_BOUNDS",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeDeadIndexIterator:  "DEAD_INDEX_ITERATOR",
	CodeDatasetReadOnly:    "DATASET_READ_ONLY",
	CodeIndexTooLarge:      "INDEX_TOO_LARGE",
}

var codeMessages = map[Code]string{
	CodeIO:                 "System input/output error",
	CodeDatasetLocked:      "Dataset locked by another process",
	CodeSizeTooSmall:       "Size too small to contain data",
	CodeInvalidIndexFormat: "Invalid index format",
	CodeDataConflict:       "Data conflicts with existing data",
	CodeReadOutOfBounds:    "Read out of bounds",
	CodeInvalidArgument:    "Invalid argument",
	CodeDeadIndexIterator:  "Index iterator is too old",
	CodeDatasetReadOnly:    "Dataset is read-only",
	CodeIndexTooLarge:      "Index edit does not fit in one cache window",
}

// Name returns the stable, uppercase name of the code, e.g. "DATA_CONFLICT".
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "UNKNOWN"
}

// Message returns the human-readable message for the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}

	return "Unknown error"
}

// Error is the result type every fallible dataset operation fails with: an
// abstract Code, the platform error when Code == CodeIO, and the label of
// the primitive that failed (e.g. "seek", "read", "write", "truncate",
// "create-lock"). It replaces the reference implementation's bool-return
// plus out-parameter plus dataset-stored last-error trio with a single
// carrier, per the "Error carrier" design note.
type Error struct {
	Code     Code
	Op       string
	Platform error

	// platformCode and hasPlatformCode carry the numeric errno extracted
	// from Platform via fs.PlatformErrno, when Platform wraps one. Query
	// them through PlatformErrno rather than reading the fields directly.
	platformCode    int
	hasPlatformCode bool
}

// PlatformErrno returns the platform-specific error code attached to an
// I/O failure (see fs.PlatformErrno), and whether one was available. Only
// meaningful when Code == CodeIO; callers that need to distinguish, say,
// "file exists" from other I/O failures across platforms should use this
// instead of inspecting Platform's concrete type.
func (e *Error) PlatformErrno() (int, bool) {
	return e.platformCode, e.hasPlatformCode
}

func (e *Error) Error() string {
	if e.Platform != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code.Name(), e.Op, e.Platform)
	}

	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Code.Name(), e.Op)
	}

	return e.Code.Name()
}

func (e *Error) Unwrap() error {
	return e.Platform
}

// Is lets errors.Is(err, ErrDataConflict) etc. work against an *Error by
// comparing abstract codes, ignoring Op/Platform.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == t.Code
}

func newErr(code Code, op string) *Error {
	return &Error{Code: code, Op: op}
}

func newIOErr(op string, platform error) *Error {
	e := &Error{Code: CodeIO, Op: op, Platform: platform}

	if code, ok := fs.PlatformErrno(platform); ok {
		e.platformCode = code
		e.hasPlatformCode = true
	}

	return e
}

// Sentinels for errors.Is comparisons against a bare code, independent of
// Op/Platform — e.g. errors.Is(err, ErrDataConflict).
var (
	ErrIO                 = &Error{Code: CodeIO}
	ErrDatasetLocked      = &Error{Code: CodeDatasetLocked}
	ErrSizeTooSmall       = &Error{Code: CodeSizeTooSmall}
	ErrInvalidIndexFormat = &Error{Code: CodeInvalidIndexFormat}
	ErrDataConflict       = &Error{Code: CodeDataConflict}
	ErrReadOutOfBounds    = &Error{Code: CodeReadOutOfBounds}
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument}
	ErrDeadIndexIterator  = &Error{Code: CodeDeadIndexIterator}
	ErrDatasetReadOnly    = &Error{Code: CodeDatasetReadOnly}
	ErrIndexTooLarge      = &Error{Code: CodeIndexTooLarge}
)

// errIsReadOnly is a tiny helper shared by every mutating entry point.
func errIsReadOnly(readOnly bool) error {
	if readOnly {
		return newErr(CodeDatasetReadOnly, "")
	}

	return nil
}
