package main

import (
	"errors"
	"fmt"

	"github.com/sgx-labs/mansage/internal/apperr"
)

// exitCodeError carries the literal exit status of a command the selector
// (or the single-suggestion shortcut) actually executed. Spec §6 requires
// that status to reach the process unchanged — "exit code of executed
// command" — rather than being collapsed to a generic failure code.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.code)
}

// formatError renders err the way the user sees it: the message, plus a
// "next step" hint line when the error kind has one registered (§7). A
// bare exitCodeError prints nothing — the executed command already wrote
// whatever output or diagnostics it had to stderr/stdout itself.
func formatError(err error) string {
	var codeErr *exitCodeError
	if errors.As(err, &codeErr) {
		return ""
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg := fmt.Sprintf("mansage: %s", appErr.Error())
		if hint := appErr.Hint(); hint != "" {
			msg += fmt.Sprintf("\n  → %s", hint)
		}
		return msg
	}
	return fmt.Sprintf("mansage: %s", err)
}

// exitCodeFor maps an error to the process exit code (§6, §7): an
// exitCodeError passes its literal code through unchanged, cancellation
// exits 130 the way a signal-terminated process conventionally does, and
// everything else that reaches here failed, so 1.
func exitCodeFor(err error) int {
	var codeErr *exitCodeError
	if errors.As(err, &codeErr) {
		return codeErr.code
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindCancelled {
		return 130
	}
	return 1
}
