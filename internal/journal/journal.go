// Package journal keeps score batches that could not be fully written so an
// operator can replay them once the rating table or database is back.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Stage names the first store a batch failed to reach
type Stage string

const (
	// StageScoring: the game finished but its awards were never computed
	StageScoring Stage = "scoring"
	// StageRatingTable: nothing was written, both stores need the batch
	StageRatingTable Stage = "rating_table"
	// StageDatabase: the rating table has the batch, the database does not
	StageDatabase Stage = "database"
)

// Entry is one escalated batch. Scoring entries carry the game instead of deltas.
type Entry struct {
	ID             int64
	CycleID        string
	Stage          Stage
	Deltas         []models.ScoreDelta
	GameKey        string
	TournamentType models.TournamentType
	Outcome        models.Outcome
	Error          string
	CreatedAt      time.Time
}

// Journal is a local SQLite log of escalated batches
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS escalations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id        TEXT NOT NULL,
	stage           TEXT NOT NULL,
	deltas          TEXT NOT NULL,
	game_key        TEXT NOT NULL DEFAULT '',
	tournament_type TEXT NOT NULL DEFAULT '',
	outcome         INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	resolved_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS escalations_pending ON escalations (resolved_at);
`

// Open opens or creates the journal database at path
func Open(ctx context.Context, path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a batch that stopped at stage
func (j *Journal) Record(ctx context.Context, cycleID string, stage Stage, deltas []models.ScoreDelta, cause error) (int64, error) {
	id, err := j.insert(ctx, Entry{CycleID: cycleID, Stage: stage, Deltas: deltas}, cause)
	if err != nil {
		return 0, err
	}

	log.Warn().
		Int64("entry", id).
		Str("cycle", cycleID).
		Str("stage", string(stage)).
		Int("deltas", len(deltas)).
		Msg("Score batch escalated to journal")

	return id, nil
}

// RecordUnscored stores a finished game whose awards could not be computed
func (j *Journal) RecordUnscored(ctx context.Context, cycleID string, game *models.Game, outcome models.Outcome, cause error) (int64, error) {
	id, err := j.insert(ctx, Entry{
		CycleID:        cycleID,
		Stage:          StageScoring,
		GameKey:        game.Key,
		TournamentType: game.TournamentType,
		Outcome:        outcome,
	}, cause)
	if err != nil {
		return 0, err
	}

	log.Warn().
		Int64("entry", id).
		Str("cycle", cycleID).
		Str("game", game.Key).
		Str("type", game.TournamentType.String()).
		Str("outcome", outcome.String()).
		Msg("Unscored game escalated to journal")

	return id, nil
}

func (j *Journal) insert(ctx context.Context, e Entry, cause error) (int64, error) {
	payload, err := json.Marshal(e.Deltas)
	if err != nil {
		return 0, fmt.Errorf("encoding deltas: %w", err)
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO escalations (cycle_id, stage, deltas, game_key, tournament_type, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CycleID, string(e.Stage), string(payload), e.GameKey, string(e.TournamentType), int(e.Outcome),
		causeText(cause), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording escalation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording escalation: %w", err)
	}
	return id, nil
}

func causeText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// Pending returns unresolved entries, oldest first
func (j *Journal) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, cycle_id, stage, deltas, game_key, tournament_type, outcome, error, created_at
		 FROM escalations WHERE resolved_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing escalations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			stage   string
			payload string
			tt      string
			outcome int
		)
		if err := rows.Scan(&e.ID, &e.CycleID, &stage, &payload, &e.GameKey, &tt, &outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning escalation: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Deltas); err != nil {
			return nil, fmt.Errorf("decoding escalation %d: %w", e.ID, err)
		}
		e.Stage = Stage(stage)
		e.TournamentType = models.TournamentType(tt)
		e.Outcome = models.Outcome(outcome)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Resolve marks an entry as replayed
func (j *Journal) Resolve(ctx context.Context, id int64) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE escalations SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("resolving escalation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("escalation %d is not pending", id)
	}
	return nil
}

// Restage moves an entry to a later stage after a partial replay. deltas
// replace the stored ones, as when a scoring entry has been scored.
func (j *Journal) Restage(ctx context.Context, id int64, stage Stage, deltas []models.ScoreDelta, cause error) error {
	payload, err := json.Marshal(deltas)
	if err != nil {
		return fmt.Errorf("encoding deltas: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`UPDATE escalations SET stage = ?, deltas = ?, error = ? WHERE id = ?`,
		string(stage), string(payload), causeText(cause), id,
	)
	if err != nil {
		return fmt.Errorf("restaging escalation %d: %w", id, err)
	}
	return nil
}
