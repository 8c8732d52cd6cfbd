package decodeerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := Newf(StreamNotFound, 512, "no tick record in window")
	wrapped := fmt.Errorf("decode: %w", err)

	if !errors.Is(wrapped, ErrStreamNotFound) {
		t.Fatalf("expected wrapped error to match ErrStreamNotFound")
	}
	if errors.Is(wrapped, ErrCorruptContainer) {
		t.Fatalf("expected kinds to differ")
	}
	if KindOf(wrapped) != StreamNotFound {
		t.Fatalf("unexpected kind: %q", KindOf(wrapped))
	}
	if !strings.Contains(err.Error(), "offset 512") {
		t.Fatalf("expected offset in message, got %q", err.Error())
	}
}

func TestGRPCStatusMapping(t *testing.T) {
	cases := map[Kind]codes.Code{
		CorruptContainer:   codes.DataLoss,
		UnrecognizedFormat: codes.InvalidArgument,
		StreamNotFound:     codes.FailedPrecondition,
		SummaryUnavailable: codes.Unavailable,
		MalformedRecord:    codes.Internal,
	}
	for kind, want := range cases {
		err := New(kind, -1, errors.New("boom"))
		st, ok := status.FromError(err)
		if !ok {
			t.Fatalf("%s: expected status.FromError to recognise the error", kind)
		}
		if st.Code() != want {
			t.Fatalf("%s: expected %v, got %v", kind, want, st.Code())
		}
	}
}

func TestFatalKinds(t *testing.T) {
	for _, kind := range []Kind{CorruptContainer, UnrecognizedFormat, StreamNotFound} {
		if !kind.Fatal() {
			t.Fatalf("expected %s to be fatal", kind)
		}
	}
	for _, kind := range []Kind{MalformedRecord, UnmatchedIdentifier, SummaryUnavailable} {
		if kind.Fatal() {
			t.Fatalf("expected %s to be recoverable", kind)
		}
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected foreign errors to have no kind")
	}
}
