package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/climdiff/climdiff/internal/compute"
	"github.com/climdiff/climdiff/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  model       TEXT NOT NULL,
  variable    TEXT NOT NULL,
  scale       REAL NOT NULL,
  vmin        REAL NOT NULL,
  vmax        REAL NOT NULL,
  min         REAL,
  max         REAL,
  mean        REAL,
  nan_count   INTEGER NOT NULL,
  inf_count   INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// Entry is one recorded run.
type Entry struct {
	ID        string
	Selection types.Selection
	Scale     float64
	VMin      float64
	VMax      float64
	Stats     compute.Stats
	Duration  time.Duration
	CreatedAt time.Time
}

// Store persists entries in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("history: ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record inserts e. Recording the same ID twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("history: entry id is required")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (
		   id, model, variable, scale, vmin, vmax,
		   min, max, mean, nan_count, inf_count, duration_ms, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Selection.Model), string(e.Selection.Variable),
		e.Scale, e.VMin, e.VMax,
		nullable(e.Stats.Min), nullable(e.Stats.Max), nullable(e.Stats.Mean),
		e.Stats.NaNCount, e.Stats.InfCount,
		e.Duration.Milliseconds(), toMillis(created),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, model, variable, scale, vmin, vmax,
		        min, max, mean, nan_count, inf_count, duration_ms, created_at
		   FROM runs
		  ORDER BY created_at DESC, id
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			model, variable string
			lo, hi, mean    sql.NullFloat64
			durMS, created  int64
		)
		if err := rows.Scan(&e.ID, &model, &variable, &e.Scale, &e.VMin, &e.VMax,
			&lo, &hi, &mean, &e.Stats.NaNCount, &e.Stats.InfCount, &durMS, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Selection = types.Selection{Model: types.ModelID(model), Variable: types.VariableID(variable)}
		e.Stats.Min, e.Stats.Max, e.Stats.Mean = orNaN(lo), orNaN(hi), orNaN(mean)
		e.Duration = time.Duration(durMS) * time.Millisecond
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return n, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
