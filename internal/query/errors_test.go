package query

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(Transportf("timeout")); got != KindTransport {
		t.Fatalf("expected transport kind, got %v", got)
	}
	if got := KindOf(Validationf("missing id")); got != KindValidation {
		t.Fatalf("expected validation kind, got %v", got)
	}
	if got := KindOf(Applicationf("not found")); got != KindApplication {
		t.Fatalf("expected application kind, got %v", got)
	}
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Fatalf("expected zero kind for unclassified error, got %v", got)
	}

	wrapped := fmt.Errorf("hook: %w", Applicationf("conflict"))
	if got := KindOf(wrapped); got != KindApplication {
		t.Fatalf("expected kind to survive wrapping, got %v", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &Error{Kind: KindTransport, Message: "send failed", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap to reach inner error")
	}
	if err.Error() != "send failed" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
