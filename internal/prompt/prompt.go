// Package prompt builds the generation prompt sent to the local LLM (C9):
// five regions joined by "---" separators, held to a hard overall budget by
// truncating only the manpage region.
package prompt

import (
	"fmt"
	"strings"
)

const budget = 48000
const truncationMarker = "\n[Content truncated for length]"

// Input holds the five regions composed into a prompt.
type Input struct {
	Instructions string // fixed task framing
	DirContext   string // project_type/marker_files/cwd block for the cwd
	ManpageTool  string // the tool the manpage region describes
	ManpageText  string // full manpage body (the only region ever truncated)
	Query        string // the user's natural-language task description
	ResponseSpec string // trailer describing the expected JSON-only response shape
}

// Build composes in.Instructions, DirContext, the manpage region, Query,
// and ResponseSpec (in that order) into one prompt string separated by
// "---" lines. If the composed prompt exceeds the hard budget, only the
// manpage region is truncated, to `budget - (length - manpageLength) - 100`,
// on a UTF-8 boundary, with a trailing marker (§4.9).
func Build(in Input) string {
	manpageRegion := formatManpageRegion(in.ManpageTool, in.ManpageText)
	regions := []string{in.Instructions, in.DirContext, manpageRegion, in.Query, in.ResponseSpec}
	full := strings.Join(regions, "\n---\n")

	if len([]rune(full)) <= budget {
		return full
	}

	overhead := len([]rune(full)) - len([]rune(manpageRegion))
	allowed := budget - overhead - 100
	if allowed < 0 {
		allowed = 0
	}
	truncatedManpage := truncateRegion(in.ManpageTool, in.ManpageText, allowed)
	regions[2] = truncatedManpage
	return strings.Join(regions, "\n---\n")
}

func formatManpageRegion(tool, text string) string {
	return fmt.Sprintf("MANPAGE(%s):\n%s", tool, text)
}

// truncateRegion rebuilds the manpage region with its body cut to fit
// within allowed code units, rune-safe, marker appended.
func truncateRegion(tool, text string, allowed int) string {
	prefix := fmt.Sprintf("MANPAGE(%s):\n", tool)
	bodyBudget := allowed - len([]rune(prefix)) - len([]rune(truncationMarker))
	if bodyBudget < 0 {
		bodyBudget = 0
	}
	runes := []rune(text)
	if bodyBudget > len(runes) {
		bodyBudget = len(runes)
	}
	return prefix + string(runes[:bodyBudget]) + truncationMarker
}
