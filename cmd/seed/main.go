// Command seed stores a survey definition in the configured store and prints
// its id, ready to be used as SURVEY_ID.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chatsurvey/internal/app"
	"chatsurvey/internal/config"
)

//go:embed demo.yaml
var demoSurvey []byte

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg.CacheDriver = config.CacheMemory

	definition := demoSurvey
	if len(os.Args) > 1 {
		if definition, err = os.ReadFile(os.Args[1]); err != nil {
			slog.Error("read survey", "path", os.Args[1], "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	survey, report, err := a.SurveyService.Create(ctx, "", definition)
	if err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	if report != nil {
		for _, w := range report.Warnings {
			slog.Warn("survey warning", "issue", w.String())
		}
	}

	slog.Info("survey seeded", "survey_id", survey.ID, "name", survey.Name, "store", cfg.StoreDriver)
	fmt.Println(survey.ID)
}
