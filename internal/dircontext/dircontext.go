// Package dircontext implements the directory context scanner (C10): a
// shallow, top-level-only scan of the current working directory for
// project markers, used to bias prompt construction toward the tools a
// project's ecosystem actually uses.
package dircontext

import (
	"os"

	"github.com/sgx-labs/mansage/internal/apperr"
)

// priority is the marker search order; the first present marker sets
// ProjectType, but every present marker is recorded in MarkerFiles (§4.10).
var priority = []string{
	"Cargo.toml",
	"package.json",
	"go.mod",
	"pyproject.toml",
	"requirements.txt",
	"CMakeLists.txt",
	".git",
}

// Context is the result of scanning one directory.
type Context struct {
	ProjectType string   // "" if no marker matched
	MarkerFiles []string // every matched marker, in priority order
	Cwd         string
}

// Scan reads the immediate children of dir (no recursion) and reports the
// highest-priority project marker present, plus all markers found.
// I/O errors reading dir propagate as ContextScanError.
func Scan(dir string) (Context, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Context{}, apperr.Wrap(apperr.KindContextScan, err, "scan directory %s", dir)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.Name()] = true
	}

	ctx := Context{Cwd: dir}
	for _, marker := range priority {
		if present[marker] {
			ctx.MarkerFiles = append(ctx.MarkerFiles, marker)
			if ctx.ProjectType == "" {
				ctx.ProjectType = marker
			}
		}
	}
	return ctx, nil
}
