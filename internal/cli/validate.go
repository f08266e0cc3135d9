package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"chatsurvey/internal/surveyconfig"
)

// ValidationResult is the outcome of validating one survey file.
type ValidationResult struct {
	Valid    bool                 `json:"valid"`
	Blocks   int                  `json:"blocks"`
	Errors   []surveyconfig.Issue `json:"errors,omitempty"`
	Warnings []surveyconfig.Issue `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a survey config against the schema and its references",
		Long: `Parse a JSON or YAML survey config, check it against the structural schema
and report dangling next, option and progress references as warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, report, err := surveyconfig.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, "read config", err)
	}

	result := ValidationResult{Valid: err == nil}
	if cfg != nil {
		result.Blocks = cfg.Blocks.Len()
	}
	if report != nil {
		result.Errors = report.Errors
		result.Warnings = report.Warnings
	}

	var failed error
	if err != nil {
		failed = WrapExitError(ExitFailure, "invalid survey config", err)
	}

	return formatter.Emit(result, failed, func(w io.Writer) {
		for _, issue := range result.Errors {
			fmt.Fprintf(w, "error: %s\n", issue)
		}
		for _, issue := range result.Warnings {
			fmt.Fprintf(w, "warning: %s\n", issue)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %s is valid (%d blocks, %d warnings)\n", path, result.Blocks, len(result.Warnings))
		} else if len(result.Errors) == 0 {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	})
}
