// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/tuimind/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNoLevel is returned when no difficulty level was stored for a mode.
var ErrNoLevel = errors.New("no stored level")

// Store wraps SQLite access for sessions, levels and the fruit inventory.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writes serialized.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			uuid TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			level INTEGER NOT NULL,
			next_level INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			total_trials INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			avg_rt_ms REAL NOT NULL,
			points INTEGER NOT NULL,
			fruits INTEGER NOT NULL,
			reward_stimulus TEXT NOT NULL,
			metrics_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_outcomes (
			session_id INTEGER NOT NULL,
			trial_index INTEGER NOT NULL,
			presented_at TEXT NOT NULL,
			responded_at TEXT,
			reaction_time_ms INTEGER,
			response TEXT NOT NULL,
			expected TEXT NOT NULL,
			correct INTEGER NOT NULL,
			solicited INTEGER NOT NULL,
			PRIMARY KEY (session_id, trial_index)
		);`,
		`CREATE TABLE IF NOT EXISTS levels (
			mode TEXT PRIMARY KEY,
			level INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS inventory (
			stimulus_id TEXT PRIMARY KEY,
			count INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_mode_level ON sessions(mode, level);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession stores a completed session and its trial outcomes in one
// transaction.
func (s *Store) SaveSession(ctx context.Context, rec model.SessionRecord) (id int64, err error) {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return 0, fmt.Errorf("encode metrics: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (uuid, started_at, ended_at, mode, level, next_level, seed, total_trials, correct, incorrect, avg_rt_ms, points, fruits, reward_stimulus, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		string(rec.GameType),
		rec.DifficultyLevel,
		rec.NextLevel,
		rec.Seed,
		rec.TotalTrials,
		rec.CorrectResponses,
		rec.IncorrectResponses,
		rec.AvgReactionTimeMs,
		rec.Points,
		rec.FruitsEarned,
		rec.RewardStimulus,
		string(metricsJSON),
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(rec.Outcomes) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO session_outcomes (session_id, trial_index, presented_at, responded_at, reaction_time_ms, response, expected, correct, solicited)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, o := range rec.Outcomes {
			var respondedAt sql.NullString
			if o.RespondedAt != nil {
				respondedAt = sql.NullString{String: formatTime(*o.RespondedAt), Valid: true}
			}
			var rt sql.NullInt64
			if o.ReactionTimeMs != nil {
				rt = sql.NullInt64{Int64: *o.ReactionTimeMs, Valid: true}
			}
			if _, err = stmt.ExecContext(ctx, id, o.TrialIndex, formatTime(o.PresentedAt), respondedAt, rt,
				string(o.Response), string(o.Expected), o.Correct, o.Solicited); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecentOutcomes returns up to limit of the newest scored outcomes recorded
// for mode at level, oldest first.
func (s *Store) RecentOutcomes(ctx context.Context, mode model.Mode, level, limit int) ([]model.TrialOutcome, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.trial_index, o.presented_at, o.responded_at, o.reaction_time_ms, o.response, o.expected, o.correct, o.solicited
		 FROM session_outcomes o
		 JOIN sessions s ON s.id = o.session_id
		 WHERE s.mode = ? AND s.level = ? AND o.solicited = 1
		 ORDER BY s.ended_at DESC, s.id DESC, o.trial_index DESC
		 LIMIT ?`,
		string(mode), level, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.TrialOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// SessionOutcomes returns every stored outcome of one session in trial order.
func (s *Store) SessionOutcomes(ctx context.Context, sessionID int64) ([]model.TrialOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trial_index, presented_at, responded_at, reaction_time_ms, response, expected, correct, solicited
		 FROM session_outcomes
		 WHERE session_id = ?
		 ORDER BY trial_index ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.TrialOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// GetLevel returns the stored difficulty level for mode, or ErrNoLevel.
func (s *Store) GetLevel(ctx context.Context, mode model.Mode) (int, error) {
	var level int
	err := s.db.QueryRowContext(ctx, `SELECT level FROM levels WHERE mode = ?`, string(mode)).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoLevel
	}
	if err != nil {
		return 0, err
	}
	return level, nil
}

// SetLevel stores the difficulty level for mode.
func (s *Store) SetLevel(ctx context.Context, mode model.Mode, level int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO levels (mode, level, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(mode) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at`,
		string(mode), level, formatTime(time.Now()))
	return err
}

// AddFruits credits count collected units of a stimulus to the inventory.
func (s *Store) AddFruits(ctx context.Context, stimulusID string, count int) error {
	if count <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inventory (stimulus_id, count) VALUES (?, ?)
		 ON CONFLICT(stimulus_id) DO UPDATE SET count = count + excluded.count`,
		stimulusID, count)
	return err
}

// ListInventory returns the collected fruits, largest count first.
func (s *Store) ListInventory(ctx context.Context) ([]model.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stimulus_id, count FROM inventory ORDER BY count DESC, stimulus_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var items []model.InventoryItem
	for rows.Next() {
		var item model.InventoryItem
		if err := rows.Scan(&item.StimulusID, &item.Count); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListSessions returns session aggregates filtered by stats config, oldest
// first. When cfg.Last is set only the newest Last sessions are returned.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Mode != "" {
		clauses = append(clauses, "mode = ?")
		args = append(args, string(cfg.Mode))
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, formatTime(*cfg.Since))
	}
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT * FROM (
			SELECT id, uuid, ended_at, mode, level, next_level, total_trials, correct, incorrect, avg_rt_ms, points, fruits, metrics_json
			FROM sessions
			WHERE %s
			ORDER BY ended_at DESC, id DESC
			LIMIT ?
		) ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt, mode, metricsJSON string
		if err := rows.Scan(&agg.SessionID, &agg.UUID, &endedAt, &mode, &agg.Level, &agg.NextLevel,
			&agg.Total, &agg.Correct, &agg.Incorrect, &agg.AvgReactionTimeMs, &agg.Points, &agg.Fruits, &metricsJSON); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		agg.Mode = model.Mode(mode)
		if err := json.Unmarshal([]byte(metricsJSON), &agg.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics of session %d: %w", agg.SessionID, err)
		}
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row scanner) (model.TrialOutcome, error) {
	var (
		o           model.TrialOutcome
		presentedAt string
		respondedAt sql.NullString
		rt          sql.NullInt64
		resp, exp   string
	)
	if err := row.Scan(&o.TrialIndex, &presentedAt, &respondedAt, &rt, &resp, &exp, &o.Correct, &o.Solicited); err != nil {
		return o, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, presentedAt)
	if err != nil {
		return o, err
	}
	o.PresentedAt = parsed
	if respondedAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, respondedAt.String)
		if err != nil {
			return o, err
		}
		o.RespondedAt = &at
	}
	if rt.Valid {
		v := rt.Int64
		o.ReactionTimeMs = &v
	}
	o.Response = model.Response(resp)
	o.Expected = model.Response(exp)
	return o, nil
}

// timeLayout keeps a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
