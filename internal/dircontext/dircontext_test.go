package dircontext

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sgx-labs/mansage/internal/apperr"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanPicksHighestPriorityMarker(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "package.json")
	touch(t, dir, "go.mod")

	ctx, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if ctx.ProjectType != "package.json" {
		t.Fatalf("ProjectType = %q, want package.json (outranks go.mod)", ctx.ProjectType)
	}
	if len(ctx.MarkerFiles) != 2 {
		t.Fatalf("MarkerFiles = %v, want both markers recorded", ctx.MarkerFiles)
	}
}

func TestScanNoMarkersReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if ctx.ProjectType != "" || len(ctx.MarkerFiles) != 0 {
		t.Fatalf("expected empty context, got %+v", ctx)
	}
}

func TestScanIsNotRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	os.MkdirAll(sub, 0o755)
	touch(t, sub, "go.mod")

	ctx, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if ctx.ProjectType != "" {
		t.Fatalf("nested go.mod must not count, got %q", ctx.ProjectType)
	}
}

func TestScanPropagatesIOErrorAsContextScanError(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatalf("expected error scanning a missing directory")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindContextScan {
		t.Fatalf("expected a ContextScanError, got %T: %v", err, err)
	}
}
