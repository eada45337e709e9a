// Package query implements the query engine (C8): turning a natural
// language task description into a set of command suggestions by
// retrieving the most relevant manpage, building a prompt around it, and
// asking the local LLM to respond with structured JSON.
package query

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/sgx-labs/mansage/internal/apperr"
	"github.com/sgx-labs/mansage/internal/config"
	"github.com/sgx-labs/mansage/internal/dircontext"
	"github.com/sgx-labs/mansage/internal/manpage"
	"github.com/sgx-labs/mansage/internal/prompt"
	"github.com/sgx-labs/mansage/internal/selector"
	"github.com/sgx-labs/mansage/internal/store"
)

const topK = 3

const instructions = `You are a shell command assistant. Given a task description and a relevant ` +
	`manpage, suggest one or more commands that accomplish the task.`

const responseSpec = `Respond with only JSON of the form ` +
	`{"suggestions":[{"command":"...","title":"...","explanation":"...","risk_level":"safe|moderate|destructive"}]}. ` +
	`risk_level is optional and defaults to safe.`

// Embedder is the subset of llmclient.Client needed to embed a query.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Generator is the subset of llmclient.Client needed to generate a response.
type Generator interface {
	Generate(ctx context.Context, model, promptText string, jsonMode bool) (string, error)
}

// Engine wires the collaborators process_query needs.
type Engine struct {
	DB       *store.DB
	Client   interface {
		Embedder
		Generator
	}
	Renderer manpage.Renderer
	Config   *config.Config
}

type generateResponse struct {
	Suggestions []rawSuggestion `json:"suggestions"`
}

type rawSuggestion struct {
	Command     string `json:"command"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Risk        string `json:"risk_level"`
}

// Process runs the nine-step query sequence and returns the suggestions
// the model proposed for queryText (§4.8).
func (e *Engine) Process(ctx context.Context, queryText string) ([]selector.Suggestion, error) {
	// Step 1: index must exist.
	if !e.DB.Exists() {
		return nil, apperr.New(apperr.KindIndexMissing, "no index found")
	}

	// Step 2: staleness check against the recorded fingerprint.
	if e.Config.NeedsRebuild() {
		return nil, apperr.IndexStale(e.Config.Index.LastEmbeddingModel, e.Config.Models.EmbeddingModel)
	}
	if e.Config.Index.LastEmbeddingModel == "" {
		return nil, apperr.New(apperr.KindFingerprintUnknown, "index has no recorded embedding model fingerprint")
	}

	// Step 3: embed the query text.
	queryVec, err := e.Client.Embed(ctx, e.Config.Models.EmbeddingModel, queryText)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "embed query")
	}
	if len(queryVec) != e.Config.Index.EmbeddingDimension {
		return nil, apperr.SchemaMismatch(e.Config.Index.EmbeddingDimension, len(queryVec))
	}

	// Step 4: retrieve the nearest manpages.
	matches, err := e.DB.Search(queryVec, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.New(apperr.KindNoMatches, "no manpages matched this query")
	}

	// Step 5: load the full page for the top match.
	top := matches[0]
	fullPage := ""
	if e.Renderer != nil {
		if rendered, err := e.Renderer.Render(ctx, top.Tool); err == nil {
			fullPage = manpage.LoadFullPage(rendered)
		}
	}
	if fullPage == "" {
		fullPage = top.Summary
	}

	// Step 6: scan the project context of the current directory.
	cwd, err := os.Getwd()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindContextScan, err, "determine working directory")
	}
	dirCtx, err := dircontext.Scan(cwd)
	if err != nil {
		return nil, err
	}

	// Step 7: build the prompt.
	p := prompt.Build(prompt.Input{
		Instructions: instructions,
		Query:        queryText,
		DirContext:   formatDirContext(dirCtx),
		ManpageTool:  top.Tool,
		ManpageText:  fullPage,
		ResponseSpec: responseSpec,
	})

	// Step 8: generate a response.
	raw, err := e.Client.Generate(ctx, e.Config.Models.LLMModel, p, true)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "generate suggestions")
	}

	// Step 9: parse and validate.
	return parseResponse(raw)
}

// formatDirContext renders the directory context block fed to the prompt
// builder: project_type, marker_files, and the absolute working directory
// (§4.9, §4.10).
func formatDirContext(ctx dircontext.Context) string {
	projectType := ctx.ProjectType
	if projectType == "" {
		projectType = "unknown"
	}
	markers := "none"
	if len(ctx.MarkerFiles) > 0 {
		markers = strings.Join(ctx.MarkerFiles, ", ")
	}
	return "project_type: " + projectType + "\nmarker_files: " + markers + "\ncwd: " + ctx.Cwd
}

// parseResponse decodes the model's JSON response. If any suggestion's
// command trims to empty, the whole document is rejected as
// ResponseInvalid (§8 P8) rather than just dropping that suggestion.
// risk_level defaults to "safe" when missing or unrecognized.
func parseResponse(raw string) ([]selector.Suggestion, error) {
	raw = strings.TrimSpace(raw)
	var decoded generateResponse
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, apperr.Wrap(apperr.KindResponseInvalid, err, "parse model response")
	}
	if len(decoded.Suggestions) == 0 {
		return nil, apperr.New(apperr.KindResponseInvalid, "model returned no suggestions")
	}

	out := make([]selector.Suggestion, 0, len(decoded.Suggestions))
	for _, s := range decoded.Suggestions {
		command := strings.TrimSpace(s.Command)
		if command == "" {
			return nil, apperr.New(apperr.KindResponseInvalid, "suggestion has an empty command")
		}
		out = append(out, selector.Suggestion{
			Command:     command,
			Title:       s.Title,
			Explanation: s.Explanation,
			Risk:        normalizeRisk(s.Risk),
		})
	}
	return out, nil
}

// normalizeRisk maps a raw risk_level to a known value, defaulting to
// "safe" when absent or unrecognized (§3, §8 S5).
func normalizeRisk(risk string) string {
	switch strings.ToLower(strings.TrimSpace(risk)) {
	case selector.RiskModerate:
		return selector.RiskModerate
	case selector.RiskDestructive:
		return selector.RiskDestructive
	default:
		return selector.RiskSafe
	}
}
