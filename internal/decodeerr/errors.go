package decodeerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies decode failures and recoverable decode conditions.
type Kind string

const (
	// CorruptContainer reports that the gzip envelope could not be inflated.
	CorruptContainer Kind = "corrupt_container"
	// UnrecognizedFormat reports a missing replay magic token.
	UnrecognizedFormat Kind = "unrecognized_format"
	// StreamNotFound reports that no offset satisfied the tick-record heuristic.
	StreamNotFound Kind = "stream_not_found"
	// MalformedRecord marks a tick or command with an implausible size. Recovered locally.
	MalformedRecord Kind = "malformed_record"
	// UnmatchedIdentifier marks a build command without a catalog identifier. Recovered by dropping it.
	UnmatchedIdentifier Kind = "unmatched_identifier"
	// SummaryUnavailable marks a missing or rejected summary container. Recovered by omitting summaries.
	SummaryUnavailable Kind = "summary_unavailable"
)

// Fatal reports whether the kind aborts the pipeline.
func (k Kind) Fatal() bool {
	switch k {
	case CorruptContainer, UnrecognizedFormat, StreamNotFound:
		return true
	default:
		return false
	}
}

// Sentinel values usable with errors.Is.
var (
	ErrCorruptContainer    = &Error{Kind: CorruptContainer}
	ErrUnrecognizedFormat  = &Error{Kind: UnrecognizedFormat}
	ErrStreamNotFound      = &Error{Kind: StreamNotFound}
	ErrMalformedRecord     = &Error{Kind: MalformedRecord}
	ErrUnmatchedIdentifier = &Error{Kind: UnmatchedIdentifier}
	ErrSummaryUnavailable  = &Error{Kind: SummaryUnavailable}
)

// Error is the tagged error returned by every decoding stage.
type Error struct {
	Kind   Kind
	Offset int
	Err    error
}

// New wraps err with the supplied kind. Offset is -1 when not meaningful.
func New(kind Kind, offset int, err error) *Error {
	return &Error{Kind: kind, Offset: offset, Err: err}
}

// Newf formats a message and wraps it with the supplied kind.
func Newf(kind Kind, offset int, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Offset >= 0 && e.Err != nil {
		msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same kind so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Kind == other.Kind
}

// GRPCStatus maps the error onto a gRPC status so hosting services can return it unchanged.
func (e *Error) GRPCStatus() *status.Status {
	code := codes.Internal
	switch e.Kind {
	case CorruptContainer:
		code = codes.DataLoss
	case UnrecognizedFormat:
		code = codes.InvalidArgument
	case StreamNotFound:
		code = codes.FailedPrecondition
	case SummaryUnavailable:
		code = codes.Unavailable
	}
	return status.New(code, e.Error())
}

// KindOf extracts the kind from err, returning "" for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Kind
	}
	return ""
}
