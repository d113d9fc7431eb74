package config

import (
	"testing"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "/etc/tournament/credentials.json")
	t.Setenv("RATING_SPREADSHEET_ID", "sheet-id")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, "@every 2m", cfg.MonitorCron)
	assert.Equal(t, "Day", cfg.GamesWorksheets["FAST"])
	assert.Equal(t, "sheet-id", cfg.GamesSpreadsheet(), "Game boards default to the rating spreadsheet")
	assert.Equal(t, 24*time.Hour, cfg.NicknameTTL())

	blocks, err := cfg.BlockOrder()
	require.NoError(t, err)
	assert.Equal(t, models.TournamentTypes, blocks)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.Attempts)
	assert.Equal(t, 5*time.Second, policy.Delay)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "/etc/tournament/credentials.json")
	t.Setenv("RATING_SPREADSHEET_ID", "sheet-id")
	t.Setenv("DATABASE_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_MonitoredMustHaveBlock(t *testing.T) {
	setRequired(t)
	t.Setenv("TOURNAMENT_TYPES", "FAST,SLOW")
	t.Setenv("MONITORED_TYPES", "STANDART")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONITORED_TYPES")
}

func TestValidate_UnknownType(t *testing.T) {
	setRequired(t)
	t.Setenv("TOURNAMENT_TYPES", "FAST,WEEKLY")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_TelegramNeedsChat(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_CHAT_ID")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DatabaseHost:     "db",
		DatabasePort:     5432,
		DatabaseUser:     "u",
		DatabasePassword: "p",
		DatabaseName:     "tournaments",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tournaments sslmode=disable", cfg.DatabaseDSN())
}
