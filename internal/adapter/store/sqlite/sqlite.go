// Package sqlite archives harmonic analyses in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"go.ngs.io/tides-analysis/internal/adapter/store"
	"go.ngs.io/tides-analysis/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id            TEXT PRIMARY KEY,
	station       TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	reference     INTEGER NOT NULL,
	span_hours    REAL NOT NULL,
	rayleigh      REAL NOT NULL,
	z0            REAL NOT NULL,
	slope         REAL NOT NULL,
	residual_rms  REAL NOT NULL,
	iterations    INTEGER NOT NULL,
	observations  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_station ON analyses (station, created_at);
CREATE TABLE IF NOT EXISTS constituents (
	analysis_id  TEXT NOT NULL REFERENCES analyses (id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	amplitude_m  REAL NOT NULL,
	phase_deg    REAL NOT NULL,
	speed        REAL NOT NULL,
	vau_deg      REAL NOT NULL,
	inferred     INTEGER NOT NULL,
	PRIMARY KEY (analysis_id, name)
);
`

// Store implements store.AnalysisStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.AnalysisStore = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAnalysis stores rec under a new id, which is also written to rec.ID.
func (s *Store) SaveAnalysis(ctx context.Context, rec *store.AnalysisRecord) (string, error) {
	id := uuid.New().String()
	created := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (id, station, created_at, reference, span_hours, rayleigh,
		                      z0, slope, residual_rms, iterations, observations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Station, created.UnixNano(), rec.Reference.UTC().UnixNano(), rec.SpanHours, rec.Rayleigh,
		rec.Z0, rec.Slope, rec.ResidualRMS, rec.Iterations, rec.Observations)
	if err != nil {
		return "", fmt.Errorf("failed to insert analysis: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO constituents (analysis_id, name, amplitude_m, phase_deg, speed, vau_deg, inferred)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare constituent insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range rec.Constituents {
		if _, err := stmt.ExecContext(ctx, id, c.Name, c.AmplitudeM, c.PhaseDeg, c.SpeedDegPerHr, c.VAUDeg, c.Inferred); err != nil {
			return "", fmt.Errorf("failed to insert constituent %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit analysis: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = created
	return id, nil
}

// GetAnalysis loads one analysis. A missing id returns store.ErrNotFound.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*store.AnalysisRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, station, created_at, reference, span_hours, rayleigh,
		       z0, slope, residual_rms, iterations, observations
		FROM analyses WHERE id = ?`, id)
	rec, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Constituents, err = s.constituents(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListAnalyses returns the most recent analyses, newest first, optionally
// for one station. Constituents are included.
func (s *Store) ListAnalyses(ctx context.Context, station string, limit int) ([]store.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, station, created_at, reference, span_hours, rayleigh,
		       z0, slope, residual_rms, iterations, observations
		FROM analyses`
	args := []any{}
	if station != "" {
		query += " WHERE station = ?"
		args = append(args, station)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	var out []store.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	_ = rows.Close()

	for i := range out {
		if out[i].Constituents, err = s.constituents(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*store.AnalysisRecord, error) {
	var (
		rec              store.AnalysisRecord
		created, refNano int64
	)
	err := row.Scan(&rec.ID, &rec.Station, &created, &refNano, &rec.SpanHours, &rec.Rayleigh,
		&rec.Z0, &rec.Slope, &rec.ResidualRMS, &rec.Iterations, &rec.Observations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan analysis row: %w", err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.Reference = time.Unix(0, refNano).UTC()
	return &rec, nil
}

func (s *Store) constituents(ctx context.Context, id string) ([]domain.ConstituentParam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, amplitude_m, phase_deg, speed, vau_deg, inferred
		FROM constituents WHERE analysis_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query constituents: %w", err)
	}
	defer rows.Close()

	var out []domain.ConstituentParam
	for rows.Next() {
		var c domain.ConstituentParam
		if err := rows.Scan(&c.Name, &c.AmplitudeM, &c.PhaseDeg, &c.SpeedDegPerHr, &c.VAUDeg, &c.Inferred); err != nil {
			return nil, fmt.Errorf("failed to scan constituent row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate constituents: %w", err)
	}
	return out, nil
}
