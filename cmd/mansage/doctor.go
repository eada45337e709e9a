package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mansage/internal/cli"
	"github.com/sgx-labs/mansage/internal/config"
	"github.com/sgx-labs/mansage/internal/llmclient"
	"github.com/sgx-labs/mansage/internal/store"
)

// doctorCheck is one named pass/fail line, JSON-tagged for --json output
// (supplemental feature #1, #5).
type doctorCheck struct {
	Name string `json:"name"`
	Ok   bool   `json:"ok"`
	Err  string `json:"error,omitempty"`
	Hint string `json:"hint,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the model server, index, and config fingerprint for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runDoctorChecks(cmd.Context())
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(checks)
			}
			cli.Header("mansage doctor")
			for _, c := range checks {
				var err error
				if !c.Ok {
					err = fmt.Errorf("%s", c.Err)
				}
				cli.CheckLine(c.Name, err, c.Hint)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON instead of a formatted summary")
	return cmd
}

// runDoctorChecks runs the model-server health probe, index existence
// check, and config fingerprint coherence check, mirroring the teacher's
// check(name, hint, fn) closure idiom.
func runDoctorChecks(ctx context.Context) []doctorCheck {
	cfg, err := config.Load()
	if err != nil {
		return []doctorCheck{{Name: "configuration", Ok: false, Err: err.Error()}}
	}

	checks := []doctorCheck{check("configuration", func() error { return nil }, "")}

	client := llmclient.New(cfg.Ollama.URL)
	checks = append(checks, check("model server", func() error {
		if !client.Health(ctx) {
			return fmt.Errorf("model server at %s is not responding", cfg.Ollama.URL)
		}
		return nil
	}, "start the model server"))

	checks = append(checks, check("embedding model installed", func() error {
		ok, err := client.HasModel(ctx, cfg.Models.EmbeddingModel)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not installed", cfg.Models.EmbeddingModel)
		}
		return nil
	}, "run `mansage setup` to pull it"))

	checks = append(checks, check("index exists", func() error {
		db, err := store.Open(config.IndexPath())
		if err != nil {
			return err
		}
		defer db.Close()
		if !db.Exists() {
			return fmt.Errorf("no index found at %s", cli.ShortenHome(config.IndexPath()))
		}
		return nil
	}, "run `mansage setup`"))

	checks = append(checks, check("index fingerprint current", func() error {
		if cfg.NeedsRebuild() {
			return fmt.Errorf("index was built with %q, config now says %q", cfg.Index.LastEmbeddingModel, cfg.Models.EmbeddingModel)
		}
		return nil
	}, "run `mansage setup`"))

	return checks
}

// check runs fn and packages the result as a doctorCheck, attaching hint
// only on failure.
func check(name string, fn func() error, hint string) doctorCheck {
	if err := fn(); err != nil {
		return doctorCheck{Name: name, Ok: false, Err: err.Error(), Hint: hint}
	}
	return doctorCheck{Name: name, Ok: true}
}
