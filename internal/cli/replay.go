package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chatsurvey/internal/model"
	"chatsurvey/internal/repository"
	"chatsurvey/internal/service"
	"chatsurvey/internal/surveyconfig"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	DatabasePath string
	ConfigPath   string
	Strict       bool
}

// ReplayResult is a session rebuilt from its stored answers.
type ReplayResult struct {
	SessionID string              `json:"sessionId"`
	State     *model.SessionState `json:"state"`
	Progress  int                 `json:"progress"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <sessionId>",
		Short: "Rebuild a session from its stored answers",
		Long: `Replay a session's answer log from a SQLite store through the engine and
print the resulting state. Completed sessions are not resumable.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DatabasePath, "db", "", "path to the SQLite store (required)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "survey config to replay against (required)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on answers for blocks missing from the config")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runReplay(rootOpts *RootOptions, opts *ReplayOptions, sessionID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(opts.DatabasePath); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	store, err := repository.OpenSQLite(opts.DatabasePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer store.Close()

	cfg, _, err := surveyconfig.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitFailure, "load config", err)
	}

	engine := service.NewRuntimeService(store,
		service.WithLogger(engineLogger(rootOpts, cmd.ErrOrStderr())),
		service.WithStrictReplay(opts.Strict),
	)

	session, err := engine.Reconstruct(ctx, sessionID, cfg)
	if err != nil {
		var stale *service.StaleAnswerError
		if errors.As(err, &stale) {
			return WrapExitError(ExitFailure, "replay", err)
		}
		return WrapExitError(ExitCommandError, "replay", err)
	}
	if session == nil {
		return formatter.Emit(nil, NewExitError(ExitFailure, "session "+sessionID+" has no open response"), func(w io.Writer) {
			fmt.Fprintf(w, "No open response for session %s\n", sessionID)
		})
	}

	result := ReplayResult{
		SessionID: sessionID,
		State:     session.State,
		Progress:  service.Progress(cfg, session.State),
	}
	return formatter.Emit(result, nil, func(w io.Writer) {
		current := result.State.CurrentBlockID
		if current == "" {
			current = "(complete)"
		}
		fmt.Fprintf(w, "session   %s\n", sessionID)
		fmt.Fprintf(w, "response  %s\n", result.State.ResponseID)
		fmt.Fprintf(w, "current   %s\n", current)
		fmt.Fprintf(w, "progress  %d%%\n", result.Progress)
		fmt.Fprintf(w, "completed %v\n", result.State.CompletedBlocks)
		vars, _ := json.Marshal(result.State.Variables)
		fmt.Fprintf(w, "variables %s\n", vars)
	})
}
