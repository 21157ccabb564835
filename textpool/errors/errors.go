package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	ErrIO         Kind = "io"
	ErrSQL        Kind = "sql"
	ErrSchema     Kind = "schema"
	ErrConfig     Kind = "config"
	ErrIngest     Kind = "ingest"
	ErrIndex      Kind = "index"
	ErrQueryParse Kind = "query_parse"
	ErrLocked     Kind = "locked"
	ErrNotFound   Kind = "not_found"
	ErrClosed     Kind = "closed"
)

type Error struct {
	Kind    Kind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func SchemaError(msg string) *Error {
	return &Error{Kind: ErrSchema, Message: msg}
}

func FieldError(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("not found: %s", what)}
}

// ErrProviderClosed is returned by operations issued after Close.
var ErrProviderClosed = New(ErrClosed, "provider closed")

func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
