// Command replay writes the score batches held in the escalation journal to
// the rating table and database they missed, then exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/cache"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/config"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/feed"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/monitor"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/repository"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	jrnl, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open journal")
	}
	defer jrnl.Close()

	pending, err := jrnl.Pending(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read journal")
	}
	if len(pending) == 0 {
		log.Info().Msg("No escalated batches. Exiting.")
		return
	}
	log.Info().Int("count", len(pending)).Msg("Escalated batches pending")

	blockOrder, err := cfg.BlockOrder()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tournament types")
	}
	ratingLayout, err := layout.New(blockOrder...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build rating layout")
	}

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Health(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database health check failed")
	}

	// The lock keeps replay and a running worker off the same rating blocks
	guard := cache.NewGuard(nil, cfg.CycleLockTTL)
	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, make sure no worker is running")
	} else {
		defer redisCache.Close()
		guard = cache.NewGuard(redisCache, cfg.CycleLockTTL)
	}

	client, err := sheets.NewClient(ctx, cfg.RatingSpreadsheetID, cfg.GoogleCredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheets client")
	}
	ratingSheet, err := client.Worksheet(ctx, cfg.RatingWorksheet)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open rating worksheet")
	}

	engine, err := monitor.New(monitor.Deps{
		Layout:    ratingLayout,
		Games:     db.Games,
		Answers:   db.Answers,
		Nicknames: db.Participants,
		Scores:    db.Participants,
		Feed:      feed.NewClient(cfg.FeedBaseURL, cfg.FeedSign, cfg.FeedTimeout),
		Table:     ratingSheet,
		Guard:     guard,
		Policy:    cfg.RetryPolicy(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	result, err := engine.Replay(ctx, jrnl)
	if err != nil {
		log.Fatal().Err(err).Msg("Replay aborted")
	}

	log.Info().
		Int("resolved", result.Resolved).
		Int("restaged", result.Restaged).
		Int("failed", result.Failed).
		Interface("pool", db.PoolStats()).
		Msg("Replay complete")

	if result.Failed > 0 {
		os.Exit(1)
	}
}
