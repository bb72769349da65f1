package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the closed set of error kinds the
// service reports. Every error crossing a package boundary carries exactly
// one kind.
type Kind string

const (
	// KindAllocation indicates identity assignment failed.
	KindAllocation Kind = "allocation"
	// KindCaption indicates the caption model failed or returned no caption.
	KindCaption Kind = "caption"
	// KindEmbedding indicates the embedding model failed.
	KindEmbedding Kind = "embedding"
	// KindIndex indicates the vector store was unavailable or rejected an operation.
	KindIndex Kind = "index"
	// KindAdmission indicates an ingestion batch was requested while one is active.
	KindAdmission Kind = "admission"
	// KindNotFound indicates a gallery or staging path is missing.
	KindNotFound Kind = "not_found"
	// KindQuery indicates a similarity query failed as a whole.
	KindQuery Kind = "query"
)

// Error is a classified error. Op names the operation that failed, in the
// form "package.Method".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and operation name. A nil err produces an error
// whose message is the kind itself, for failures with no underlying cause.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is E with a formatted message instead of a wrapped cause.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, walking the wrap chain. Errors that never
// passed through this package report an empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
