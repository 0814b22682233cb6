package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voicekeep/voicekeep/internal/client"
	"github.com/voicekeep/voicekeep/internal/config"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("voicekeep")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log = appLogger(cfg.App)
	log.Debug().Any("config", cfg).Msg("received configs")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := client.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init app error")
	}

	configureProviders(ctx, app, log)

	fmt.Println("Recording... press Ctrl+C to stop.")
	noteID, err := app.Record(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("recording failed")
	}

	note, err := app.Notes.GetByID(noteID)
	if err != nil {
		log.Fatal().Err(err).Str("note", noteID).Msg("load note")
	}

	fmt.Printf("Note %s: %s\n", note.ID, note.Title)
	for _, childID := range note.Takeaways {
		child, cerr := app.Notes.GetByID(childID)
		if cerr != nil {
			continue
		}
		fmt.Printf("  %s: %s\n", child.ID, child.Title)
	}

	if _, err = app.PruneOrphans(context.Background()); err != nil {
		log.Warn().Err(err).Msg("blob cleanup failed")
	}
}

// configureProviders registers a provider from the environment when
// credentials are present and validates everything before recording starts.
func configureProviders(ctx context.Context, app *client.App, log *logger.Logger) {
	apiKey := os.Getenv("VOICEKEEP_API_KEY")
	if apiKey != "" {
		_, err := app.Services.Providers.AddProvider(ctx, models.LLMProvider{
			Name:                  envOr("VOICEKEEP_PROVIDER_NAME", "openai"),
			APIKey:                apiKey,
			BaseURL:               os.Getenv("VOICEKEEP_BASE_URL"),
			SupportsTranscription: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("provider registration failed")
		}
	}

	if model := os.Getenv("VOICEKEEP_DEFAULT_MODEL"); model != "" {
		if err := app.Services.Providers.SetDefaultModel(model); err != nil {
			log.Warn().Err(err).Msg("set default model failed")
		}
	}

	app.Services.Providers.ValidateAll(ctx)

	if report := app.Services.Agents.ValidateAgentDependencies(); !report.Valid {
		for _, issue := range report.Issues {
			log.Warn().Str("issue", issue).Msg("agents limited")
		}
	}
}

// appLogger derives the process logger from configuration once it is
// loaded; errors before this point use the bootstrap logger's default role.
func appLogger(app config.App) *logger.Logger {
	if app.LogToFile {
		return logger.NewFileLogger(app.LogRole)
	}
	return logger.NewLogger(app.LogRole)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
