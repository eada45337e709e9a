// Package pipeline implements the embedding pipeline (C6): a two-stage
// worker pool that extracts manpage summaries and embeds them concurrently,
// bounded by a small channel capacity so extraction never races far ahead
// of the slower embedding stage.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sgx-labs/mansage/internal/cli"
	"github.com/sgx-labs/mansage/internal/manpage"
	"github.com/sgx-labs/mansage/internal/store"
)

const (
	extractWorkers = 4
	embedWorkers   = 4
	channelCap     = 8
	maxAttempts    = 3
)

// Embedder is the subset of llmclient.Client the pipeline needs, kept as an
// interface so tests can stub it without a live server.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Item is one unit of work: a manpage to extract and embed.
type Item struct {
	Descriptor manpage.Descriptor
}

// Result is the outcome of processing one Item.
type Result struct {
	Entry store.Entry
	Path  string
	Err   error
}

// Progress is reported every max(1, total/100) completed items (§4.6).
type Progress struct {
	Completed int
	Total     int
}

// Options configures a pipeline Run.
type Options struct {
	Renderer   manpage.Renderer
	Embedder   Embedder
	Model      string
	OnProgress func(Progress)
}

type extracted struct {
	descriptor manpage.Descriptor
	summary    string
	err        error
}

// Run extracts and embeds every item, returning one Result per item in no
// particular order. ctx cancellation stops dispatching new work and causes
// in-flight calls to return promptly; already-queued items may still
// report a cancellation error rather than being silently dropped.
func Run(ctx context.Context, items []Item, opts Options) []Result {
	runID := uuid.New()
	total := len(items)
	if total == 0 {
		return nil
	}
	cli.Debugf("pipeline run %s: processing %d manpages", runID, total)

	extractIn := make(chan manpage.Descriptor, channelCap)
	extractOut := make(chan extracted, channelCap)

	var extractWG sync.WaitGroup
	for i := 0; i < extractWorkers; i++ {
		extractWG.Add(1)
		go func() {
			defer extractWG.Done()
			for d := range extractIn {
				if ctx.Err() != nil {
					extractOut <- extracted{descriptor: d, err: ctx.Err()}
					continue
				}
				content, err := opts.Renderer.Render(ctx, d.Tool)
				if err != nil {
					extractOut <- extracted{descriptor: d, err: err}
					continue
				}
				summary := manpage.Summarize(content, d.Tool)
				extractOut <- extracted{descriptor: d, summary: summary}
			}
		}()
	}

	go func() {
		for _, it := range items {
			extractIn <- it.Descriptor
		}
		close(extractIn)
	}()
	go func() {
		extractWG.Wait()
		close(extractOut)
	}()

	resultsCh := make(chan Result, channelCap)
	var embedWG sync.WaitGroup
	for i := 0; i < embedWorkers; i++ {
		embedWG.Add(1)
		go func() {
			defer embedWG.Done()
			for e := range extractOut {
				if e.err != nil {
					resultsCh <- Result{Path: e.descriptor.Path, Err: e.err}
					continue
				}
				vec, err := embedWithRetry(ctx, opts.Embedder, opts.Model, e.summary)
				if err != nil {
					resultsCh <- Result{Path: e.descriptor.Path, Err: err}
					continue
				}
				resultsCh <- Result{
					Path: e.descriptor.Path,
					Entry: store.Entry{
						Tool:    e.descriptor.Tool,
						Section: e.descriptor.Section,
						Summary: e.summary,
						Vector:  vec,
					},
				}
			}
		}()
	}
	go func() {
		embedWG.Wait()
		close(resultsCh)
	}()

	progressEvery := total / 100
	if progressEvery < 1 {
		progressEvery = 1
	}

	results := make([]Result, 0, total)
	for r := range resultsCh {
		results = append(results, r)
		if opts.OnProgress != nil && len(results)%progressEvery == 0 {
			opts.OnProgress(Progress{Completed: len(results), Total: total})
		}
	}
	if opts.OnProgress != nil && len(results)%progressEvery != 0 {
		opts.OnProgress(Progress{Completed: len(results), Total: total})
	}
	return results
}

// embedWithRetry makes up to maxAttempts embed calls in total, waiting an
// exponential 2^attempt seconds after each failed attempt (§4.6).
func embedWithRetry(ctx context.Context, embedder Embedder, model, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vec, err := embedder.Embed(ctx, model, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		delay := time.Duration(1<<attempt) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxAttempts, lastErr)
}
