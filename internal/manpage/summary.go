package manpage

import (
	"regexp"
	"strings"
)

const summaryLimit = 500
const fullPageLimit = 8000

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")
var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// Summarize extracts a short description from raw `man -P cat` output: the
// first line of the NAME section, optionally followed by " - " and the
// first paragraph of DESCRIPTION, truncated to summaryLimit code units on a
// UTF-8 boundary (§4.3, §8 P4).
func Summarize(content, tool string) string {
	var b strings.Builder

	if name := extractSection(content, "NAME"); name != "" {
		if first := firstLine(name); first != "" {
			b.WriteString(first)
		}
	}
	if b.Len() == 0 {
		b.WriteString(tool)
	}

	if desc := extractSection(content, "DESCRIPTION"); desc != "" {
		if para := firstParagraph(desc); para != "" {
			if b.Len() > 0 {
				b.WriteString(" - ")
			}
			b.WriteString(para)
		}
	}

	return truncateUTF8(b.String(), summaryLimit, "...")
}

// LoadFullPage takes already-rendered page content, strips ANSI sequences,
// collapses runs of horizontal whitespace, and truncates to fullPageLimit
// code units (§4.3).
func LoadFullPage(content string) string {
	stripped := ansiPattern.ReplaceAllString(content, "")
	collapsed := whitespaceRun.ReplaceAllString(stripped, " ")
	lines := strings.Split(collapsed, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	collapsed = strings.Join(lines, "\n")
	return truncateUTF8(collapsed, fullPageLimit, "\n[Content truncated for length]")
}

// truncateUTF8 returns s unmodified if it already fits within limit code
// units (runes), otherwise truncates to the nearest rune boundary at or
// before limit and appends suffix.
func truncateUTF8(s string, limit int, suffix string) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + suffix
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

// extractSection finds a section named sectionName (e.g. "NAME") in raw
// manpage text and returns its body with line and blank-line structure
// intact, stopping at the next all-caps header line. Paragraph boundaries
// are preserved so firstParagraph can tell where one paragraph ends.
func extractSection(content, sectionName string) string {
	lines := strings.Split(content, "\n")
	var out []string
	inSection := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.EqualFold(trimmed, sectionName) {
			inSection = true
			continue
		}

		if inSection && trimmed != "" && isAllCapsHeader(trimmed) {
			break
		}

		if inSection {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

func isAllCapsHeader(s string) bool {
	if len(s) <= 2 {
		return false
	}
	for _, r := range s {
		if r == ' ' {
			continue
		}
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// firstParagraphLimit is the 400-character cap on the DESCRIPTION excerpt
// (§4.3 rule (c)), leaving room in the 500-unit summary budget for the NAME
// line and the " - " separator.
const firstParagraphLimit = 400

// firstParagraph returns the first blank-line-delimited paragraph of text
// (§4.3 rule (a): stop at a blank line once at least one non-empty line has
// been seen), capped at firstParagraphLimit code units (rule (c)). The cap
// truncates mid-accumulation, not just between lines.
func firstParagraph(text string) string {
	var b strings.Builder
	sawBlank := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if b.Len() > 0 {
				sawBlank = true
			}
			continue
		}
		if sawBlank && b.Len() > 0 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(trimmed)
		if capped := truncateUTF8(b.String(), firstParagraphLimit, ""); capped != b.String() {
			return capped
		}
	}
	return b.String()
}
