package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/sgx-labs/mansage/internal/manpage"
)

type stubRenderer struct {
	fail map[string]bool
}

func (s stubRenderer) Render(ctx context.Context, tool string) (string, error) {
	if s.fail[tool] {
		return "", fmt.Errorf("render failed for %s", tool)
	}
	return "NAME\n       " + tool + " - does things\n", nil
}

type stubEmbedder struct {
	failuresBeforeSuccess int32
	calls                 int32
}

func (s *stubEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if n <= atomic.LoadInt32(&s.failuresBeforeSuccess) {
		return nil, errors.New("transient failure")
	}
	return []float32{float32(len(text)), 0.5}, nil
}

func items(tools ...string) []Item {
	var out []Item
	for _, t := range tools {
		out = append(out, Item{Descriptor: manpage.Descriptor{Tool: t, Section: "1", Path: "/man1/" + t + ".1"}})
	}
	return out
}

func TestRunProducesOneResultPerItem(t *testing.T) {
	results := Run(context.Background(), items("ls", "cat", "grep"), Options{
		Renderer: stubRenderer{},
		Embedder: &stubEmbedder{},
		Model:    "nomic-embed-text",
	})
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error for %s: %v", r.Path, r.Err)
		}
		if len(r.Entry.Vector) == 0 {
			t.Fatalf("expected a vector for %s", r.Path)
		}
	}
}

func TestRunReportsExtractionFailures(t *testing.T) {
	results := Run(context.Background(), items("ls", "broken"), Options{
		Renderer: stubRenderer{fail: map[string]bool{"broken": true}},
		Embedder: &stubEmbedder{},
		Model:    "nomic-embed-text",
	})
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	var sawFailure bool
	for _, r := range results {
		if r.Path == "/man1/broken.1" {
			if r.Err == nil {
				t.Fatalf("expected error for broken tool")
			}
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("did not observe the expected failure result")
	}
}

func TestRunEmptyInputReturnsNil(t *testing.T) {
	results := Run(context.Background(), nil, Options{Renderer: stubRenderer{}, Embedder: &stubEmbedder{}})
	if results != nil {
		t.Fatalf("expected nil results for empty input, got %+v", results)
	}
}

func TestRunReportsProgress(t *testing.T) {
	var events []Progress
	Run(context.Background(), items("a", "b", "c", "d"), Options{
		Renderer: stubRenderer{},
		Embedder: &stubEmbedder{},
		Model:    "m",
		OnProgress: func(p Progress) {
			events = append(events, p)
		},
	})
	if len(events) == 0 {
		t.Fatalf("expected at least one progress event")
	}
	last := events[len(events)-1]
	if last.Completed != 4 || last.Total != 4 {
		t.Fatalf("final progress = %+v, want Completed=4 Total=4", last)
	}
}
