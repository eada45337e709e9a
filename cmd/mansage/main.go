// Command mansage is a natural-language shell assistant: it turns a task
// description into command suggestions grounded in locally installed
// manpages, using a local Ollama-compatible model server for embeddings
// and generation.
package main

import (
	"fmt"
	"os"

	"github.com/sgx-labs/mansage/internal/selector"
)

func main() {
	defer selector.RestoreTerminal()

	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(exitCodeFor(err))
	}
}

func printError(err error) {
	if msg := formatError(err); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
}
