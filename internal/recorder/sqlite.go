package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"StageScreener/internal/model"
)

// SQLiteRecorder persists result documents to a SQLite database. Composite
// runs are additionally flattened into composite_scores for dashboard queries.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stage_results (
			id           TEXT PRIMARY KEY,
			date         TEXT NOT NULL,
			stage        TEXT NOT NULL,
			frequency    TEXT NOT NULL,
			run_id       TEXT,
			symbol_count INTEGER,
			payload      TEXT NOT NULL,
			updated_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_results_lookup ON stage_results(stage, frequency, date)`,

		`CREATE TABLE IF NOT EXISTS composite_scores (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			date              TEXT NOT NULL,
			frequency         TEXT NOT NULL,
			run_id            TEXT,
			symbol            TEXT NOT NULL,
			current_price     REAL,
			relative_strength REAL,
			volatility        REAL,
			momentum          REAL,
			trend             REAL,
			pattern           REAL,
			structure         REAL,
			final_score       INTEGER,
			final_signal      TEXT,
			forward_return    REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_composite_date ON composite_scores(date, frequency)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordStage(ctx context.Context, key StageKey, runID string, results any) error {
	payload, count, err := encodeResults(results)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.upsert(ctx, r.db, key, runID, count, payload)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRecorder) upsert(ctx context.Context, db execer, key StageKey, runID string, count int, payload []byte) error {
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO stage_results
		(id, date, stage, frequency, run_id, symbol_count, payload, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		key.ID(), key.Date, string(key.Stage), key.Frequency,
		runID, count, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", key.ID(), err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordComposite(ctx context.Context, key StageKey, runID string, results []model.CompositeResult) error {
	payload, count, err := encodeResults(results)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := r.upsert(ctx, tx, key, runID, count, payload); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM composite_scores WHERE date = ? AND frequency = ?`,
		key.Date, key.Frequency); err != nil {
		return fmt.Errorf("clear composite rows: %w", err)
	}

	for _, c := range results {
		scores := make(map[model.StageName]float64, len(c.Factors))
		for _, f := range c.Factors {
			scores[f.Stage] = f.RawScore
		}
		var fwd sql.NullFloat64
		if c.ForwardReturn != nil {
			fwd = sql.NullFloat64{Float64: *c.ForwardReturn, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO composite_scores
			(date, frequency, run_id, symbol, current_price,
			 relative_strength, volatility, momentum, trend, pattern, structure,
			 final_score, final_signal, forward_return)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			key.Date, key.Frequency, runID, c.Symbol, c.CurrentPrice,
			scores[model.StageRelativeStrength], scores[model.StageVolatility],
			scores[model.StageMomentum], scores[model.StageTrend],
			scores[model.StagePattern], scores[model.StageStructure],
			c.FinalScore, string(c.FinalSignal), fwd,
		)
		if err != nil {
			return fmt.Errorf("insert composite row %s: %w", c.Symbol, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) LoadStage(ctx context.Context, key StageKey, out any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM stage_results WHERE id = ?`, key.ID()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", key.ID(), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key.ID(), err)
	}
	return decodeResults([]byte(payload), out)
}

func (r *SQLiteRecorder) LoadComposite(ctx context.Context, key StageKey) ([]model.CompositeResult, error) {
	var out []model.CompositeResult
	if err := r.LoadStage(ctx, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRecorder) Latest(ctx context.Context, stage model.StageName, frequency string) (StageKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var date string
	err := r.db.QueryRowContext(ctx, `SELECT date FROM stage_results
		WHERE stage = ? AND frequency = ? ORDER BY date DESC LIMIT 1`,
		string(stage), frequency).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return StageKey{}, ErrNotFound
	}
	if err != nil {
		return StageKey{}, fmt.Errorf("latest %s: %w", stage, err)
	}
	return StageKey{Date: date, Stage: stage, Frequency: frequency}, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
