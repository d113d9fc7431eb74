// Command overall-sync rebuilds the overall rating worksheet from the
// participants table once and exits.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/config"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/overall"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/repository"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Overall sync failed", zap.Error(err))
	}

	logger.Info("Overall sync completed", zap.Duration("duration", time.Since(start)))
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to database", zap.String("host", cfg.DatabaseHost), zap.String("database", cfg.DatabaseName))

	client, err := sheets.NewClient(ctx, cfg.RatingSpreadsheetID, cfg.GoogleCredentialsFile)
	if err != nil {
		return err
	}
	sheet, err := client.Worksheet(ctx, cfg.OverallWorksheet)
	if err != nil {
		return fmt.Errorf("failed to open overall worksheet: %w", err)
	}

	return overall.NewSyncer(db.Participants, sheet, logger, cfg.RetryPolicy()).RollUp(ctx)
}
