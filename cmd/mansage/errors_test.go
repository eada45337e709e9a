package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/sgx-labs/mansage/internal/apperr"
)

func TestFormatErrorIncludesHintForServerUnreachable(t *testing.T) {
	err := apperr.New(apperr.KindServerUnreachable, "model server at http://x is not responding")
	out := formatError(err)
	if !strings.Contains(out, "start the model server") {
		t.Fatalf("expected hint in formatted error, got %q", out)
	}
}

func TestFormatErrorOmitsHintWhenNoneRegistered(t *testing.T) {
	err := apperr.New(apperr.KindResponseInvalid, "bad response")
	out := formatError(err)
	if strings.Contains(out, "→") {
		t.Fatalf("did not expect a hint line, got %q", out)
	}
}

func TestFormatErrorHandlesPlainErrors(t *testing.T) {
	out := formatError(errors.New("boom"))
	if !strings.Contains(out, "boom") {
		t.Fatalf("expected plain error message preserved, got %q", out)
	}
}

func TestExitCodeForCancelledIsOneThirty(t *testing.T) {
	err := apperr.New(apperr.KindCancelled, "cancelled")
	if code := exitCodeFor(err); code != 130 {
		t.Fatalf("exit code = %d, want 130", code)
	}
}

func TestExitCodeForOtherErrorsIsOne(t *testing.T) {
	err := apperr.New(apperr.KindNoMatches, "no matches")
	if code := exitCodeFor(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestExitCodeForExitCodeErrorPassesCodeThrough(t *testing.T) {
	err := &exitCodeError{code: 42}
	if code := exitCodeFor(err); code != 42 {
		t.Fatalf("exit code = %d, want 42", code)
	}
}

func TestFormatErrorPrintsNothingForExitCodeError(t *testing.T) {
	err := &exitCodeError{code: 42}
	if out := formatError(err); out != "" {
		t.Fatalf("expected no message for an exitCodeError, got %q", out)
	}
}
