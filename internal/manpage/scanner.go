// Package manpage implements manpage discovery and summary extraction
// (C3): locating installed man1/man8 pages, parsing their NAME and
// DESCRIPTION sections into a short summary, and loading full page text
// for prompt construction.
package manpage

import (
	"os"
	"path/filepath"
	"strings"
)

// defaultRoots are the manpage tree roots scanned regardless of MANPATH.
var defaultRoots = []string{
	"/usr/share/man",
	"/usr/local/share/man",
	"/opt/homebrew/share/man",
}

var sections = []string{"man1", "man8"}

// Descriptor identifies one discovered manpage file.
type Descriptor struct {
	Tool    string
	Section string
	Path    string
}

// Roots returns the directories to scan: the built-in defaults plus any
// colon-separated entries from $MANPATH, deduplicated in encounter order.
func Roots() []string {
	roots := append([]string{}, defaultRoots...)
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		seen[r] = true
	}
	if manpath := os.Getenv("MANPATH"); manpath != "" {
		for _, p := range strings.Split(manpath, ":") {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			roots = append(roots, p)
		}
	}
	return roots
}

// Scan walks every configured root's man1/man8 subdirectories and returns
// every manpage file found (§4.3 discovery). Missing directories are
// skipped, not errors.
func Scan() ([]Descriptor, error) {
	var out []Descriptor
	for _, root := range Roots() {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		for _, section := range sections {
			sectionPath := filepath.Join(root, section)
			entries, err := os.ReadDir(sectionPath)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if !isManpageFile(name) {
					continue
				}
				tool, sec := parseFilename(name)
				out = append(out, Descriptor{
					Tool:    tool,
					Section: sec,
					Path:    filepath.Join(sectionPath, name),
				})
			}
		}
	}
	return out, nil
}

func isManpageFile(name string) bool {
	return strings.HasSuffix(name, ".1") ||
		strings.HasSuffix(name, ".8") ||
		strings.HasSuffix(name, ".1.gz") ||
		strings.HasSuffix(name, ".8.gz")
}

// parseFilename splits a manpage filename into (tool, section): strip a
// trailing .gz, the last character of what remains is the section,
// everything before the final dot is the tool name (§4.3).
func parseFilename(name string) (tool, section string) {
	name = strings.TrimSuffix(name, ".gz")
	if name == "" {
		return "", "1"
	}
	section = string(name[len(name)-1])
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		tool = name[:idx]
	} else {
		tool = name
	}
	return tool, section
}
