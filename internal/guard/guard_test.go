package guard

import (
	"testing"

	"github.com/jmv4/ghlkit/internal/query"
)

func TestGuardCheck(t *testing.T) {
	g, err := New(`"calendarId" in params && params["calendarId"] != ""`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if err := g.Check(map[string]string{"calendarId": "cal_1"}); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	err = g.Check(map[string]string{"calendarId": ""})
	if query.KindOf(err) != query.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := g.Check(nil); query.KindOf(err) != query.KindValidation {
		t.Fatalf("expected validation error for nil params, got %v", err)
	}
}

func TestGuardEvalFailure(t *testing.T) {
	g, err := New(`params["missing"] == "x"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	// Indexing an absent key fails at eval time; the guard reports it as a
	// validation error rather than letting the request through.
	if err := g.Check(map[string]string{}); query.KindOf(err) != query.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGuardRejectsNonBoolean(t *testing.T) {
	if _, err := New(`params["calendarId"]`); err == nil {
		t.Fatalf("expected non-boolean expression to be rejected")
	}
}

func TestGuardRejectsInvalidSyntax(t *testing.T) {
	if _, err := New(`params[`); err == nil {
		t.Fatalf("expected compile error")
	}
}
