// Package exec implements the exec surface (C12): running a chosen command,
// copying it to the clipboard, or opening it in a line editor for revision.
package exec

import (
	"os"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/chzyer/readline"
	"github.com/sgx-labs/mansage/internal/apperr"
)

// Execute runs command via `sh -c`, inheriting stdin/stdout/stderr, and
// returns its exit code (§4.12).
func Execute(command string) (int, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, apperr.Wrap(apperr.KindTerminal, err, "spawn command: %s", command)
}

// Copy places command on the system clipboard (§4.12).
func Copy(command string) error {
	if err := clipboard.WriteAll(command); err != nil {
		return apperr.Wrap(apperr.KindClipboardUnavail, err, "copy to clipboard")
	}
	return nil
}

// Edit opens a line editor pre-loaded with initial and returns the user's
// trimmed, non-empty revision, or "" with ok=false if the user cancelled
// (empty input, Ctrl-C, or Ctrl-D) (§4.12).
func Edit(initial string) (edited string, ok bool, err error) {
	rl, err := readline.New("Edit: ")
	if err != nil {
		return "", false, err
	}
	defer rl.Close()

	rl.Operation.SetBuffer(initial)
	line, err := rl.Readline()
	if err == readline.ErrInterrupt || err != nil {
		return "", false, nil
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false, nil
	}
	return trimmed, true, nil
}
