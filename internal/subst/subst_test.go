package subst

import (
	"testing"

	"github.com/chariot-build/chariot/internal/errs"
)

func TestSubstituteBasic(t *testing.T) {
	got, err := Substitute("make -j@(thread_count)", map[string]string{"thread_count": "8"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "make -j8" {
		t.Errorf("got %q, want %q", got, "make -j8")
	}
}

func TestSubstituteLiteralAt(t *testing.T) {
	got, err := Substitute("user@host", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user@host" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestSubstituteEmptyNameIsLiteral(t *testing.T) {
	got, err := Substitute("echo @()", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "echo @()" {
		t.Errorf("got %q, want literal @()", got)
	}
}

func TestSubstituteUnknownNameFails(t *testing.T) {
	_, err := Substitute("echo @(bogus)", map[string]string{"known": "1"})
	if err == nil {
		t.Fatal("expected error for unknown embed")
	}
	if !errs.Is(err, errs.UnknownEmbed) {
		t.Errorf("expected UnknownEmbed kind, got %v", err)
	}
}

func TestSubstituteNonRecursive(t *testing.T) {
	vars := map[string]string{"a": "@(b)", "b": "shouldnotappear"}
	got, err := Substitute("@(a)", vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "@(b)" {
		t.Errorf("got %q, want %q (non-recursive)", got, "@(b)")
	}
}

func TestSubstituteIdempotentWhenNoFurtherEmbeds(t *testing.T) {
	vars := map[string]string{"prefix": "/usr/local"}
	s := "configure --prefix=@(prefix)"
	once, err := Substitute(s, vars)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Substitute(once, vars)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("substitute not idempotent: %q != %q", once, twice)
	}
}

func TestSubstituteCaseSensitive(t *testing.T) {
	_, err := Substitute("@(Prefix)", map[string]string{"prefix": "/usr"})
	if !errs.Is(err, errs.UnknownEmbed) {
		t.Errorf("expected case-sensitive mismatch to fail, got %v", err)
	}
}
