package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstream, "orchestrator failed").
		WithCause(root).
		WithRetryable(true).
		WithCheckpoint("urgent_tasks").
		WithItem("task-1")

	if GetErrorCode(err) != ErrUpstream {
		t.Fatalf("expected code %s, got %s", ErrUpstream, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	want := "[UPSTREAM_ERROR] urgent_tasks item=task-1 orchestrator failed: root"
	if got := err.Error(); got != want {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrFatal, "no checking points")
	wrapped := fmt.Errorf("init: %w", inner)

	if !IsFatal(wrapped) {
		t.Fatalf("expected fatal through wrap")
	}
	if IsFatal(errors.New("plain")) {
		t.Fatalf("plain error must not be fatal")
	}
	if GetErrorCode(nil) != "" {
		t.Fatalf("nil error has no code")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain error is not retryable")
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := WrapError(ErrSourceFetch, "fetch failed", cause)
	if !IsErrorCode(err, ErrSourceFetch) {
		t.Fatalf("expected SOURCE_FETCH")
	}
	if e, ok := AsError(err); !ok || e.Cause != cause {
		t.Fatalf("AsError mismatch")
	}
}
