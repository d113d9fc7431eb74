package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Score feed
	FeedBaseURL string        `envconfig:"FEED_BASE_URL" default:"https://local-ruua.flashscore.ninja/46/x/feed"`
	FeedSign    string        `envconfig:"FEED_SIGN" default:"SW9D1eZo"`
	FeedTimeout time.Duration `envconfig:"FEED_TIMEOUT" default:"30s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"tournaments"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"tournament_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Caching TTL (in seconds)
	CacheTTLNicknames int           `envconfig:"CACHE_TTL_NICKNAMES" default:"86400"` // 24 hours
	CycleLockTTL      time.Duration `envconfig:"CYCLE_LOCK_TTL" default:"15m"`

	// Google Sheets
	GoogleCredentialsFile string            `envconfig:"GOOGLE_CREDENTIALS_FILE" required:"true"`
	RatingSpreadsheetID   string            `envconfig:"RATING_SPREADSHEET_ID" required:"true"`
	RatingWorksheet       string            `envconfig:"RATING_WORKSHEET" default:"Текущий рейтинг"`
	OverallWorksheet      string            `envconfig:"OVERALL_WORKSHEET" default:"Общий рейтинг"`
	GamesSpreadsheetID    string            `envconfig:"GAMES_SPREADSHEET_ID" default:""`
	GamesWorksheets       map[string]string `envconfig:"GAMES_WORKSHEETS" default:"FAST:Day,STANDART:Week,SLOW:Month"`
	GamesKeyColumn        string            `envconfig:"GAMES_KEY_COLUMN" default:"A"`
	GamesFirstCoeffColumn string            `envconfig:"GAMES_FIRST_COEFF_COLUMN" default:"F"`

	// Tournaments: rating table block order and the types monitored by default
	TournamentTypes []string `envconfig:"TOURNAMENT_TYPES" default:"FAST,STANDART,SLOW"`
	MonitoredTypes  []string `envconfig:"MONITORED_TYPES" default:"FAST,STANDART,SLOW"`

	// Remote call retries
	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"5"`
	RetryDelay    time.Duration `envconfig:"RETRY_DELAY" default:"5s"`

	// Scheduler
	EnableScheduler bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	AutoLaunch      bool   `envconfig:"AUTO_LAUNCH" default:"true"`
	MonitorCron     string `envconfig:"MONITOR_CRON" default:"@every 2m"`

	// Telegram admin notifications
	TelegramToken string `envconfig:"TELEGRAM_TOKEN" default:""`
	AdminChatID   int64  `envconfig:"ADMIN_CHAT_ID" default:"0"`

	// Journal of escalated scoring batches
	JournalPath string `envconfig:"JOURNAL_PATH" default:"data/journal.db"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.RatingSpreadsheetID == "" {
		return fmt.Errorf("RATING_SPREADSHEET_ID is required")
	}

	blocks, err := c.BlockOrder()
	if err != nil {
		return fmt.Errorf("TOURNAMENT_TYPES: %w", err)
	}
	monitored, err := c.Monitored()
	if err != nil {
		return fmt.Errorf("MONITORED_TYPES: %w", err)
	}
	for _, tt := range monitored {
		if !contains(blocks, tt) {
			return fmt.Errorf("MONITORED_TYPES: %s has no rating block in TOURNAMENT_TYPES", tt)
		}
	}

	for tag := range c.GamesWorksheets {
		if _, err := models.ParseTournamentType(tag); err != nil {
			return fmt.Errorf("GAMES_WORKSHEETS: %w", err)
		}
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1")
	}

	if c.TelegramToken != "" && c.AdminChatID == 0 {
		return fmt.Errorf("ADMIN_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return nil
}

// BlockOrder returns the tournament types in rating table block order
func (c *Config) BlockOrder() ([]models.TournamentType, error) {
	return models.ParseTournamentTypes(c.TournamentTypes)
}

// Monitored returns the tournament types launched on startup
func (c *Config) Monitored() ([]models.TournamentType, error) {
	return models.ParseTournamentTypes(c.MonitoredTypes)
}

// RetryPolicy returns the policy applied to every remote call
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{Attempts: c.RetryAttempts, Delay: c.RetryDelay}
}

// GamesSpreadsheet returns the spreadsheet holding the per-type game boards
func (c *Config) GamesSpreadsheet() string {
	if c.GamesSpreadsheetID == "" {
		return c.RatingSpreadsheetID
	}
	return c.GamesSpreadsheetID
}

// NicknameTTL returns how long resolved nicknames stay cached
func (c *Config) NicknameTTL() time.Duration {
	return time.Duration(c.CacheTTLNicknames) * time.Second
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func contains(types []models.TournamentType, tt models.TournamentType) bool {
	for _, t := range types {
		if t == tt {
			return true
		}
	}
	return false
}
