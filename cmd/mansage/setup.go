package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mansage/internal/apperr"
	"github.com/sgx-labs/mansage/internal/cli"
	"github.com/sgx-labs/mansage/internal/config"
	"github.com/sgx-labs/mansage/internal/indexer"
	"github.com/sgx-labs/mansage/internal/llmclient"
	"github.com/sgx-labs/mansage/internal/manpage"
)

func newSetupCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Probe the model server, pull missing models, and build the manpage index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return apperr.Wrap(apperr.KindConfigParse, err, "load configuration")
			}
			client := llmclient.New(cfg.Ollama.URL)
			stats, err := indexer.Setup(cmd.Context(), client, cfg, manpage.SystemRenderer{})
			if err != nil {
				return err
			}
			return reportStats(stats, jsonOut, "setup")
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON instead of a formatted summary")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-run the incremental indexing sequence without touching model selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return apperr.Wrap(apperr.KindConfigParse, err, "load configuration")
			}
			client := llmclient.New(cfg.Ollama.URL)
			stats, err := indexer.RunIndexing(cmd.Context(), client, cfg, manpage.SystemRenderer{}, false)
			if err != nil {
				return err
			}
			return reportStats(stats, jsonOut, "update")
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON instead of a formatted summary")
	return cmd
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the index, change tracker, and configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := indexer.Clean(); err != nil {
				return apperr.Wrap(apperr.KindConfigIO, err, "clean mansage state")
			}
			cli.Infof("removed index, tracker, and config")
			return nil
		},
	}
}

// reportStats prints the run's Stats either as formatted text (the
// teacher's boxed-header idiom) or as JSON when --json was passed
// (supplemental feature: scriptable output).
func reportStats(stats *indexer.Stats, jsonOut bool, label string) error {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	cli.Header(fmt.Sprintf("mansage %s", label))
	fmt.Printf("  discovered: %s\n", cli.FormatNumber(stats.TotalDiscovered))
	fmt.Printf("  processed:  %s\n", cli.FormatNumber(stats.Processed))
	fmt.Printf("  unchanged:  %s\n", cli.FormatNumber(stats.SkippedUnchanged))
	if stats.Errors > 0 {
		fmt.Printf("  %sfailed:     %s%s\n", cli.Yellow, cli.FormatNumber(stats.Errors), cli.Reset)
	}
	return nil
}
