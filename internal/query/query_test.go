package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sgx-labs/mansage/internal/apperr"
	"github.com/sgx-labs/mansage/internal/config"
	"github.com/sgx-labs/mansage/internal/dircontext"
	"github.com/sgx-labs/mansage/internal/llmclient"
	"github.com/sgx-labs/mansage/internal/store"
)

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, tool string) (string, error) {
	return "NAME\n       " + tool + " - a test tool\n", nil
}

// newServer stubs /api/embeddings and /api/generate: embeddings always
// return the given embedding vector, generate returns raw.
func newServer(t *testing.T, embedding []float32, raw string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			json.NewEncoder(w).Encode(map[string]any{"embedding": embedding})
		case "/api/generate":
			json.NewEncoder(w).Encode(map[string]any{"response": raw})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func seedDB(t *testing.T, vec []float32) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	if err := db.CreateIndex([]store.Entry{
		{Tool: "find", Section: "1", Summary: "find - search for files", Vector: vec},
	}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	return db
}

func readyConfig(dim int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Index.EmbeddingDimension = dim
	cfg.Index.LastEmbeddingModel = cfg.Models.EmbeddingModel
	return cfg
}

func TestProcessHappyPathReturnsSuggestions(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	server := newServer(t, vec, `{"suggestions":[{"command":"find . -size +10M","title":"find large files","explanation":"scans cwd","risk_level":"safe"}]}`)
	defer server.Close()

	db := seedDB(t, vec)
	defer db.Close()

	e := &Engine{
		DB:       db,
		Client:   llmclient.New(server.URL),
		Renderer: stubRenderer{},
		Config:   readyConfig(len(vec)),
	}

	suggestions, err := e.Process(context.Background(), "find big files")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Command != "find . -size +10M" {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
	if suggestions[0].Risk != "safe" {
		t.Fatalf("Risk = %q, want safe", suggestions[0].Risk)
	}
}

func TestProcessDefaultsMissingRiskLevelToSafe(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	server := newServer(t, vec, `{"suggestions":[{"command":"ls -la","title":"list","explanation":"lists files"}]}`)
	defer server.Close()

	db := seedDB(t, vec)
	defer db.Close()

	e := &Engine{DB: db, Client: llmclient.New(server.URL), Renderer: stubRenderer{}, Config: readyConfig(len(vec))}

	suggestions, err := e.Process(context.Background(), "list files")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if suggestions[0].Risk != "safe" {
		t.Fatalf("Risk = %q, want safe default (§8 S5)", suggestions[0].Risk)
	}
}

func TestProcessFailsWhenIndexMissing(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	e := &Engine{DB: db, Client: llmclient.New("http://127.0.0.1:1"), Config: config.DefaultConfig()}
	_, err = e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindIndexMissing)
}

func TestProcessFailsWhenFingerprintUnknown(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	db := seedDB(t, vec)
	defer db.Close()

	cfg := config.DefaultConfig()
	cfg.Index.EmbeddingDimension = len(vec)
	// LastEmbeddingModel left blank: index was never fingerprinted.

	e := &Engine{DB: db, Client: llmclient.New("http://127.0.0.1:1"), Config: cfg}
	_, err := e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindFingerprintUnknown)
}

func TestProcessFailsWhenModelFingerprintStale(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	db := seedDB(t, vec)
	defer db.Close()

	cfg := config.DefaultConfig()
	cfg.Index.EmbeddingDimension = len(vec)
	cfg.Index.LastEmbeddingModel = "a-different-embedding-model"

	e := &Engine{DB: db, Client: llmclient.New("http://127.0.0.1:1"), Config: cfg}
	_, err := e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindIndexStale)
}

func TestProcessFailsOnEmbeddingDimensionMismatch(t *testing.T) {
	stored := []float32{0.1, 0.2, 0.3}
	server := newServer(t, []float32{0.1, 0.2}, "") // embed returns 2 dims
	defer server.Close()

	db := seedDB(t, stored)
	defer db.Close()

	e := &Engine{DB: db, Client: llmclient.New(server.URL), Config: readyConfig(len(stored))}
	_, err := e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindSchemaMismatch)
}

func TestProcessFailsWithNoMatchesOnEmptyIndex(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()
	if err := db.CreateIndex(nil); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	vec := []float32{0.1, 0.2, 0.3}
	server := newServer(t, vec, "")
	defer server.Close()

	e := &Engine{DB: db, Client: llmclient.New(server.URL), Config: readyConfig(len(vec))}
	_, err = e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindNoMatches)
}

// TestProcessRejectsWholeDocumentOnAnyEmptyCommand locks in §8 P8: a
// document with one valid suggestion and one whose command trims to empty
// must fail entirely, not silently drop the bad suggestion and return the
// good one.
func TestProcessRejectsWholeDocumentOnAnyEmptyCommand(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	server := newServer(t, vec, `{"suggestions":[{"command":"ls","title":"t","explanation":"e"},{"command":"   ","title":"t2","explanation":"e2"}]}`)
	defer server.Close()

	db := seedDB(t, vec)
	defer db.Close()

	e := &Engine{DB: db, Client: llmclient.New(server.URL), Renderer: stubRenderer{}, Config: readyConfig(len(vec))}
	_, err := e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindResponseInvalid)
}

func TestProcessRejectsMalformedModelResponse(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	server := newServer(t, vec, "not json")
	defer server.Close()

	db := seedDB(t, vec)
	defer db.Close()

	e := &Engine{DB: db, Client: llmclient.New(server.URL), Renderer: stubRenderer{}, Config: readyConfig(len(vec))}
	_, err := e.Process(context.Background(), "anything")
	assertKind(t, err, apperr.KindResponseInvalid)
}

func TestFormatDirContextIncludesProjectTypeMarkersAndCwd(t *testing.T) {
	out := formatDirContext(dircontext.Context{
		ProjectType: "go.mod",
		MarkerFiles: []string{"go.mod"},
		Cwd:         "/tmp/project",
	})
	if !strings.Contains(out, "go.mod") || !strings.Contains(out, "/tmp/project") {
		t.Fatalf("expected project type and cwd in context block, got %q", out)
	}
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", want)
	}
	appErr, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T: %v", err, err)
	}
	if appErr.Kind != want {
		t.Fatalf("Kind = %s, want %s", appErr.Kind, want)
	}
}
