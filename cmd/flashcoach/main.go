package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"flashcoach/internal/checkpoint"
	"flashcoach/internal/coach"
	"flashcoach/internal/config"
	"flashcoach/internal/ddragon"
	"flashcoach/internal/discord"
	"flashcoach/internal/logging"
	"flashcoach/internal/pipeline"
	"flashcoach/internal/report"
	"flashcoach/internal/riot"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file - try multiple locations
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	fs := flag.NewFlagSet("flashcoach", flag.ContinueOnError)
	riotID := fs.String("riot-id", "", "Riot ID (e.g., 'Player#NA1')")
	gameName := fs.String("name", "", "Game name (without tag)")
	tagLine := fs.String("tag", "", "Tag line (without #)")
	regionName := fs.String("region", "", "Region: americas, europe, asia, sea (or a platform like euw, kr)")
	count := fs.Int("count", 0, "Number of recent matches to analyse, 1-100 (default MATCH_COUNT or 30)")
	workers := fs.Int("workers", 0, "Concurrent match fetches (default FETCH_WORKERS or 4)")
	outDir := fs.String("out", "", "Reports directory (default REPORTS_DIR or 'reports')")
	copyReport := fs.Bool("copy", false, "Copy the report to the clipboard")
	validateKey := fs.Bool("validate-key", false, "Check the Riot API key before starting")
	noCheckpoint := fs.Bool("no-checkpoint", false, "Disable checkpointing of fetched matches")
	debug := fs.Bool("debug", false, "Verbose development logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["count"] {
		if err := config.ValidateCount(*count); err != nil {
			fmt.Fprintf(os.Stderr, "Error: -count: %v\n", err)
			return 1
		}
		cfg.MatchCount = *count
	}
	if *workers > 0 {
		cfg.FetchWorkers = *workers
	}
	if *outDir != "" {
		cfg.ReportsDir = *outDir
	}

	logger, err := logging.New(cfg.LogLevel, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := pipeline.SetupSignalHandler(context.Background(), logger)
	defer stop()

	answers, err := pipeline.NewPrompter(os.Stdin, os.Stdout).Collect(ctx, pipeline.Answers{
		RiotID:   *riotID,
		GameName: *gameName,
		TagLine:  *tagLine,
		Region:   *regionName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	region := riot.ParseRegion(answers.Region)

	riotOpts := []riot.ClientOption{riot.WithLogger(logger)}
	if cfg.RiotBaseURL != "" {
		riotOpts = append(riotOpts, riot.WithClientBaseURL(cfg.RiotBaseURL))
	}
	riotClient, err := riot.NewClient(cfg.RiotAPIKey, riotOpts...)
	if err != nil {
		logger.Error("failed to create riot client", zap.Error(err))
		return 1
	}

	if *validateKey {
		status, err := riotClient.ValidateKey(ctx, region)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Riot API key is valid (%s)\n", status.Name)
	}

	gemini, err := coach.NewGemini(ctx, coach.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		logger.Error("failed to create gemini client", zap.Error(err))
		return 1
	}

	// Item names only enrich the prompt
	items := ddragon.NewItemRegistry("")
	if err := items.Load(ctx); err != nil {
		logger.Warn("item names unavailable, prompt will use raw ids", zap.Error(err))
	} else {
		logger.Debug("item registry loaded", zap.String("version", items.Version()))
	}

	pcfg := pipeline.Config{
		Source:    riotClient,
		Selector:  coach.NewSelector(gemini, cfg.GeminiModel, logger),
		Generator: coach.NewGenerator(gemini, items, logger),
		Writer:    report.NewWriter(cfg.ReportsDir),
		Workers:   cfg.FetchWorkers,
		Out:       os.Stdout,
		Logger:    logger,
	}

	if !*noCheckpoint {
		store, err := checkpoint.Open(ctx, cfg.CheckpointPath)
		if err != nil {
			logger.Warn("checkpointing disabled", zap.Error(err))
		} else {
			defer store.Close()
			pcfg.Checkpoint = store
		}
	}

	if cfg.ArchiveURL != "" {
		archive, err := report.NewArchive(ctx, cfg.ArchiveURL)
		if err != nil {
			logger.Warn("report archive unavailable", zap.Error(err))
		} else {
			defer archive.Close()
			pcfg.Archive = archive
		}
	}

	if cfg.DiscordWebhookURL != "" {
		pcfg.Notifier = discord.NewWebhookClient(cfg.DiscordWebhookURL)
	}

	if *copyReport {
		pcfg.Copy = clipboard.WriteAll
	}

	_, err = pipeline.New(pcfg).Run(ctx, pipeline.Input{
		GameName: answers.GameName,
		TagLine:  answers.TagLine,
		Region:   region,
		Count:    cfg.MatchCount,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted. Fetched matches are checkpointed; rerun to resume.")
			return 1
		}
		logger.Error("run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
