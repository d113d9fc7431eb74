package main

import (
	"context"
	"flag"
	"fmt"
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
	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/monitor"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/notify"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/overall"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/repository"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/scheduler"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/server"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	once := flag.Bool("once", false, "run a single monitoring cycle over the monitored types and exit")
	flag.Parse()

	// Setup logger
	setupLogger()

	log.Info().Msg("Starting tournament monitoring worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once); err != nil {
		log.Fatal().Err(err).Msg("Worker failed")
	}

	log.Info().Msg("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, once bool) error {
	policy := cfg.RetryPolicy()

	blockOrder, err := cfg.BlockOrder()
	if err != nil {
		return err
	}
	monitored, err := cfg.Monitored()
	if err != nil {
		return err
	}
	ratingLayout, err := layout.New(blockOrder...)
	if err != nil {
		return fmt.Errorf("failed to build rating layout: %w", err)
	}

	// Database
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
	log.Info().Msg("Database connection established")

	// Redis is optional: without it nicknames are not cached and cycles are
	// only guarded in-process
	var (
		nicknames = cache.NewNicknames(db.Participants, nil, 0)
		guard     = cache.NewGuard(nil, cfg.CycleLockTTL)
		checkers  = map[string]server.Checker{"database": server.CheckerFunc(db.Health)}
	)
	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		defer redisCache.Close()
		nicknames = cache.NewNicknames(db.Participants, redisCache, cfg.NicknameTTL())
		guard = cache.NewGuard(redisCache, cfg.CycleLockTTL)
		checkers["redis"] = server.CheckerFunc(redisCache.Ping)
		log.Info().Msg("Redis cache connected")
	}

	// Spreadsheets
	ratingClient, err := sheets.NewClient(ctx, cfg.RatingSpreadsheetID, cfg.GoogleCredentialsFile)
	if err != nil {
		return err
	}
	ratingSheet, err := ratingClient.Worksheet(ctx, cfg.RatingWorksheet)
	if err != nil {
		return fmt.Errorf("failed to open rating worksheet: %w", err)
	}
	overallSheet, err := ratingClient.Worksheet(ctx, cfg.OverallWorksheet)
	if err != nil {
		return fmt.Errorf("failed to open overall worksheet: %w", err)
	}

	boards, err := openGameBoards(ctx, cfg, ratingClient)
	if err != nil {
		return err
	}

	// Journal of escalated score batches
	jrnl, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	deps := monitor.Deps{
		Layout:    ratingLayout,
		Games:     db.Games,
		Answers:   db.Answers,
		Nicknames: nicknames,
		Scores:    db.Participants,
		Feed:      feed.NewClient(cfg.FeedBaseURL, cfg.FeedSign, cfg.FeedTimeout),
		Table:     ratingSheet,
		Journal:   jrnl,
		Guard:     guard,
		Policy:    policy,
	}
	if boards != nil {
		deps.Marker = boards
	}
	engine, err := monitor.New(deps)
	if err != nil {
		return err
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create roll-up logger: %w", err)
	}
	defer zapLogger.Sync()
	syncer := overall.NewSyncer(db.Participants, overallSheet, zapLogger, policy)

	sched := scheduler.NewScheduler(cfg.MonitorCron, blockOrder, engine, syncer, notifier)

	if once {
		return runOnce(ctx, sched, monitored)
	}

	if cfg.AutoLaunch {
		sched.Launch(monitored...)
	}
	if cfg.EnableScheduler {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := server.New(fmt.Sprintf(":%d", cfg.HTTPPort), sched, checkers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		return srv.Shutdown(context.Background())
	})

	// Update system uptime and pool metrics
	g.Go(func() error {
		startTime := time.Now()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
				db.RecordPoolStats()
			case <-gctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

// runOnce launches the monitored types, runs one cycle and reports it
func runOnce(ctx context.Context, sched *scheduler.Scheduler, types []models.TournamentType) error {
	sched.Launch(types...)

	result, err := sched.RunNow(ctx)
	if result != nil {
		log.Info().
			Str("cycle", result.ID).
			Int("finished", len(result.Finished)).
			Int("awarded", result.Awarded).
			Interface("exhausted", result.Exhausted).
			Msg("Single cycle complete")
	}
	return err
}

func openGameBoards(ctx context.Context, cfg *config.Config, ratingClient *sheets.Client) (*sheets.GameBoards, error) {
	if len(cfg.GamesWorksheets) == 0 {
		return nil, nil
	}

	client := ratingClient
	if cfg.GamesSpreadsheet() != ratingClient.SpreadsheetID() {
		var err error
		client, err = sheets.NewClient(ctx, cfg.GamesSpreadsheet(), cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
	}

	worksheets := make(map[models.TournamentType]string, len(cfg.GamesWorksheets))
	for tag, title := range cfg.GamesWorksheets {
		tt, err := models.ParseTournamentType(tag)
		if err != nil {
			return nil, err
		}
		worksheets[tt] = title
	}

	return sheets.NewGameBoards(client, worksheets, cfg.GamesKeyColumn, cfg.GamesFirstCoeffColumn)
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.TelegramToken == "" {
		log.Info().Msg("No Telegram token, admin notifications are logged only")
		return notify.Nop{}, nil
	}
	return notify.NewTelegram(cfg.TelegramToken, cfg.AdminChatID, cfg.RetryPolicy())
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}
