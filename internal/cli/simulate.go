package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chatsurvey/internal/cache"
	"chatsurvey/internal/model"
	"chatsurvey/internal/service"
	"chatsurvey/internal/surveyconfig"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	Answers []string
	Name    string
}

// SimulationStep is one answered block and where it led.
type SimulationStep struct {
	BlockID  string          `json:"blockId"`
	Answer   json.RawMessage `json:"answer"`
	Next     *model.Question `json:"next"`
	Progress int             `json:"progress"`
}

// SimulationResult is a full offline walk through a survey.
type SimulationResult struct {
	First     *model.Question  `json:"first"`
	Steps     []SimulationStep `json:"steps"`
	Variables map[string]any   `json:"variables"`
	Completed []string         `json:"completedBlocks"`
	Current   string           `json:"currentBlockId"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <config>",
		Short: "Walk a survey with scripted answers without touching a store",
		Long: `Start a preview session on the config and submit each --answer in order.
Answers are block=value; the value is parsed as JSON when it can be,
otherwise used as text. An empty value submits the empty string.`,
		Example: `  surveyctl simulate survey.yaml --answer b0=Ada --answer b1=yes --answer 'b3=["arts"]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Answers, "answer", "a", nil, "answer as block=value (repeatable)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "respondent name")

	return cmd
}

func runSimulate(rootOpts *RootOptions, opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, _, err := surveyconfig.Load(path)
	if err != nil {
		return WrapExitError(ExitFailure, "load config", err)
	}

	type scripted struct {
		blockID string
		value   json.RawMessage
	}
	script := make([]scripted, 0, len(opts.Answers))
	for _, a := range opts.Answers {
		id, value, err := parseAnswerFlag(a)
		if err != nil {
			return WrapExitError(ExitCommandError, "parse --answer", err)
		}
		script = append(script, scripted{id, value})
	}

	sessions := cache.NewMemorySessionCache()
	engine := service.NewRuntimeService(nil,
		service.WithLogger(engineLogger(rootOpts, cmd.ErrOrStderr())),
		service.WithSessionCache(sessions),
	)

	start, err := engine.StartPreview(ctx, cfg, model.StartOptions{RespondentName: opts.Name})
	if err != nil {
		return WrapExitError(ExitFailure, "start preview", err)
	}

	result := SimulationResult{First: start.FirstQuestion, Steps: []SimulationStep{}}
	var failed error
	for _, s := range script {
		res, err := engine.SubmitAnswer(ctx, service.SubmitRequest{
			SessionID:  start.SessionID,
			QuestionID: s.blockID,
			Answer:     s.value,
		})
		if err != nil {
			failed = WrapExitError(ExitFailure, "answer "+s.blockID, err)
			break
		}
		result.Steps = append(result.Steps, SimulationStep{
			BlockID:  s.blockID,
			Answer:   s.value,
			Next:     res.NextQuestion,
			Progress: res.Progress,
		})
	}

	if session, err := sessions.Get(ctx, start.SessionID); err == nil && session != nil {
		result.Variables = session.State.Variables
		result.Completed = session.State.CompletedBlocks
		result.Current = session.State.CurrentBlockID
	}

	return formatter.Emit(result, failed, func(w io.Writer) {
		fmt.Fprintf(w, "start  %s\n", describe(result.First))
		for _, step := range result.Steps {
			fmt.Fprintf(w, "%-6s %s -> %s (%d%%)\n", step.BlockID, string(step.Answer), describe(step.Next), step.Progress)
		}
		if failed != nil {
			fmt.Fprintf(w, "error: %v\n", failed)
		}
		if len(result.Variables) > 0 {
			vars, _ := json.Marshal(result.Variables)
			fmt.Fprintf(w, "variables %s\n", vars)
		}
	})
}

// parseAnswerFlag splits block=value and turns value into a JSON answer
func parseAnswerFlag(s string) (string, json.RawMessage, error) {
	id, value, ok := strings.Cut(s, "=")
	if !ok || id == "" {
		return "", nil, fmt.Errorf("%q: want block=value", s)
	}
	if json.Valid([]byte(value)) && value != "" {
		return id, json.RawMessage(value), nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", nil, err
	}
	return id, encoded, nil
}

func describe(q *model.Question) string {
	if q == nil {
		return "(end)"
	}
	content := q.Content.Text
	if q.Content.Keyed() {
		content = "(keyed content)"
	}
	return fmt.Sprintf("[%s %s] %s", q.ID, q.Type, content)
}
