package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mansage/internal/apperr"
	"github.com/sgx-labs/mansage/internal/config"
	"github.com/sgx-labs/mansage/internal/exec"
	"github.com/sgx-labs/mansage/internal/llmclient"
	"github.com/sgx-labs/mansage/internal/manpage"
	"github.com/sgx-labs/mansage/internal/query"
	"github.com/sgx-labs/mansage/internal/selector"
	"github.com/sgx-labs/mansage/internal/store"
)

// version is stamped at build time via -ldflags; "dev" otherwise.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mansage [query words...]",
		Short:         "Translate a shell task into command suggestions grounded in manpages",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runQuery(cmd.Context(), strings.Join(args, " "))
		},
	}
	root.SetVersionTemplate("mansage {{.Version}}\n")
	root.Flags().BoolP("version", "V", false, "print the version and exit")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newSetupCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newDoctorCmd())
	return root
}

// runQuery is the "<prog> <query words…>" command surface entry (§6): run
// the query pipeline, then either execute the sole suggestion directly or
// hand the set to the interactive selector.
func runQuery(ctx context.Context, queryText string) error {
	cfg, err := config.Load()
	if err != nil {
		return apperr.Wrap(apperr.KindConfigParse, err, "load configuration")
	}

	db, err := store.Open(config.IndexPath())
	if err != nil {
		return err
	}
	defer db.Close()

	client := llmclient.New(cfg.Ollama.URL)
	engine := &query.Engine{
		DB:       db,
		Client:   client,
		Renderer: manpage.SystemRenderer{},
		Config:   cfg,
	}

	suggestions, err := engine.Process(ctx, queryText)
	if err != nil {
		return err
	}

	if len(suggestions) == 1 {
		return runAction(selector.Action{Kind: selector.ActionExecute, Command: suggestions[0].Command})
	}

	action, err := selector.Run(suggestions)
	if err != nil {
		return apperr.Wrap(apperr.KindTerminal, err, "run interactive selector")
	}
	return runAction(action)
}

// runAction carries out the action the selector (or the single-suggestion
// shortcut) emitted, converting C12's results into an exit status (§6):
// the executed command's own exit code reaches the caller unchanged via
// exitCodeError, 0 for Copy/Abort, 1 on any other failure.
func runAction(action selector.Action) error {
	switch action.Kind {
	case selector.ActionExecute:
		code, err := exec.Execute(action.Command)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitCodeError{code: code}
		}
		return nil
	case selector.ActionCopy:
		return exec.Copy(action.Command)
	case selector.ActionEdit:
		edited, ok, err := exec.Edit(action.Command)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		code, err := exec.Execute(edited)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitCodeError{code: code}
		}
		return nil
	case selector.ActionAbort, selector.ActionNone:
		return nil
	default:
		return nil
	}
}
