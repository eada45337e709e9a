// Package indexer implements the setup/update orchestrator (C7): probing
// the model server, selecting models, pulling what's missing, and running
// the incremental indexing sequence.
package indexer

import (
	"context"

	"github.com/sgx-labs/mansage/internal/apperr"
	"github.com/sgx-labs/mansage/internal/cli"
	"github.com/sgx-labs/mansage/internal/config"
	"github.com/sgx-labs/mansage/internal/llmclient"
	"github.com/sgx-labs/mansage/internal/manpage"
	"github.com/sgx-labs/mansage/internal/pipeline"
	"github.com/sgx-labs/mansage/internal/store"
	"github.com/sgx-labs/mansage/internal/tracker"
)

// Stats summarizes one run_indexing pass.
type Stats struct {
	TotalDiscovered  int `json:"total_discovered"`
	Processed        int `json:"processed"`
	SkippedUnchanged int `json:"skipped_unchanged"`
	Errors           int `json:"errors"`
}

// Setup runs the full setup sequence: probe the server, pick models
// (pulling the embedding and generation models if they're missing), then
// run indexing (§4.7).
func Setup(ctx context.Context, client *llmclient.Client, cfg *config.Config, renderer manpage.Renderer) (*Stats, error) {
	if !client.Health(ctx) {
		return nil, apperr.New(apperr.KindServerUnreachable, "model server at %s is not responding", cfg.Ollama.URL)
	}

	hasEmbedding, err := client.HasModel(ctx, cfg.Models.EmbeddingModel)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "check installed models")
	}
	if !hasEmbedding {
		cli.Infof("pulling embedding model %s", cfg.Models.EmbeddingModel)
		if err := client.Pull(ctx, cfg.Models.EmbeddingModel, func(ev llmclient.PullEvent) {
			cli.Debugf("pull %s: %s", cfg.Models.EmbeddingModel, ev.Status)
		}); err != nil {
			return nil, apperr.Wrap(apperr.KindPullFailed, err, "pull embedding model %s", cfg.Models.EmbeddingModel)
		}
	}

	if cfg.Models.LLMModel == "" {
		best, err := client.PickBestModel(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, err, "pick generation model")
		}
		cfg.Models.LLMModel = best
	}

	if cfg.Models.LLMModel != "" {
		hasLLM, err := client.HasModel(ctx, cfg.Models.LLMModel)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, err, "check installed models")
		}
		if !hasLLM {
			cli.Infof("pulling generation model %s", cfg.Models.LLMModel)
			if err := client.Pull(ctx, cfg.Models.LLMModel, func(ev llmclient.PullEvent) {
				cli.Debugf("pull %s: %s", cfg.Models.LLMModel, ev.Status)
			}); err != nil {
				return nil, apperr.Wrap(apperr.KindPullFailed, err, "pull generation model %s", cfg.Models.LLMModel)
			}
		}
	}

	return RunIndexing(ctx, client, cfg, renderer, false)
}

// RunIndexing performs the seven-step incremental build (§4.7). The
// ordering of steps 5-6 (persist tracker + config fingerprint) strictly
// precedes step 7 (atomic index replace): a crash after persisting
// metadata but before the index swap is recoverable by re-running setup,
// whereas the reverse order could leave a live index whose fingerprint
// was never recorded.
func RunIndexing(ctx context.Context, client *llmclient.Client, cfg *config.Config, renderer manpage.Renderer, force bool) (*Stats, error) {
	// Step 1: discover.
	descriptors, err := manpage.Scan()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, err, "scan manpage directories")
	}
	stats := &Stats{TotalDiscovered: len(descriptors)}

	// Step 2: load tracker.
	trk, err := tracker.Load(config.TrackerPath())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigIO, err, "load change tracker")
	}

	// Step 3: filter to changed paths (unless forced).
	paths := make([]string, len(descriptors))
	byPath := make(map[string]manpage.Descriptor, len(descriptors))
	for i, d := range descriptors {
		paths[i] = d.Path
		byPath[d.Path] = d
	}

	var toProcess []string
	if force {
		toProcess = paths
	} else {
		changed, unchanged := trk.Filter(paths)
		toProcess = changed
		stats.SkippedUnchanged = unchanged
	}

	if len(toProcess) == 0 && !force {
		cli.Infof("no changed manpages, index is up to date")
		return stats, nil
	}

	// Step 4: extract + embed the changed set.
	items := make([]pipeline.Item, 0, len(toProcess))
	for _, p := range toProcess {
		items = append(items, pipeline.Item{Descriptor: byPath[p]})
	}
	results := pipeline.Run(ctx, items, pipeline.Options{
		Renderer: renderer,
		Embedder: client,
		Model:    cfg.Models.EmbeddingModel,
		OnProgress: func(p pipeline.Progress) {
			cli.Infof("embedding... %d/%d", p.Completed, p.Total)
		},
	})

	var entries []store.Entry
	for _, r := range results {
		if r.Err != nil {
			cli.Warnf("failed to process %s: %v", r.Path, r.Err)
			stats.Errors++
			continue
		}
		entries = append(entries, r.Entry)
		stats.Processed++
	}

	if stats.Processed == 0 && !force {
		return stats, nil
	}

	// Step 5: update tracker hashes and prune deleted entries.
	trk.UpdateHashes(toProcess)
	trk.PruneMissing()
	if err := trk.Save(); err != nil {
		return nil, apperr.Wrap(apperr.KindConfigIO, err, "save change tracker")
	}

	// Step 6: record the fingerprint the index was built with — before the
	// index itself is replaced, so the two stay in agreement even if the
	// process dies right after this line.
	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	cfg.RecordFingerprint(dim)
	if err := cfg.Save(); err != nil {
		return nil, apperr.Wrap(apperr.KindConfigIO, err, "save configuration")
	}

	// Step 7: atomically replace the live index.
	db, err := store.Open(config.IndexPath())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var fullSet []store.Entry
	if !force {
		fullSet, err = mergeWithExisting(db, entries)
		if err != nil {
			return nil, err
		}
	} else {
		fullSet = entries
	}

	if err := db.CreateIndex(fullSet); err != nil {
		return nil, err
	}

	return stats, nil
}

// mergeWithExisting combines freshly embedded entries with the
// not-recomputed rows already in the live index, keyed by tool+section, so
// an incremental update doesn't drop untouched manpages.
func mergeWithExisting(db *store.DB, fresh []store.Entry) ([]store.Entry, error) {
	existing, err := db.All()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return fresh, nil
	}

	freshKeys := make(map[string]bool, len(fresh))
	for _, e := range fresh {
		freshKeys[e.Tool+"/"+e.Section] = true
	}

	merged := make([]store.Entry, 0, len(existing)+len(fresh))
	for _, e := range existing {
		if !freshKeys[e.Tool+"/"+e.Section] {
			merged = append(merged, e)
		}
	}
	merged = append(merged, fresh...)
	return merged, nil
}

// Clean removes the index, tracker, and config files (supplemental).
func Clean() error {
	return config.Clean()
}
