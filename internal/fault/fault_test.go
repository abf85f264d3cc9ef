package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Tagged(t *testing.T) {
	err := New(KindForbidden, "not your organization")
	if KindOf(err) != KindForbidden {
		t.Errorf("KindOf = %v, want KindForbidden", KindOf(err))
	}
	if !IsKind(err, KindForbidden) {
		t.Error("IsKind(KindForbidden) = false, want true")
	}
}

func TestKindOf_WrappedChain(t *testing.T) {
	inner := Wrap(KindExpired, "code expired", errors.New("row stale"))
	outer := fmt.Errorf("verify: %w", inner)
	if KindOf(outer) != KindExpired {
		t.Errorf("KindOf through wrap = %v, want KindExpired", KindOf(outer))
	}
}

func TestKindOf_Untagged(t *testing.T) {
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("untagged error should be KindUnknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil error should be KindUnknown")
	}
}

func TestMessage(t *testing.T) {
	err := New(KindNoOp, "no changes to make")
	if got := Message(err); got != "no changes to make" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("oops")); got != "internal error" {
		t.Errorf("Message fallback = %q", got)
	}
}

func TestError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUnavailable, "database unreachable", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}
