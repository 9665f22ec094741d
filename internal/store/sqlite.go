// Package store keeps finished extraction runs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GeorgiosLymperis/quotefancy/internal/scraper"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed archive of runs.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the run, its per-source summary and its records in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *scraper.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a commit is a no-op error.
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, interrupted) VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt, run.FinishedAt, run.Interrupted,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	srcStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (run_id, position, source_id, pages, records, dropped, stop) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer srcStmt.Close()
	for i, src := range run.Sources {
		if _, err := srcStmt.ExecContext(ctx, run.ID.String(), i, src.SourceID, src.Pages, src.Records, src.Dropped, src.Stop.String()); err != nil {
			return fmt.Errorf("failed to insert source %q: %w", src.SourceID, err)
		}
	}

	quoteStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quotes (run_id, serial, quote, link, author) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer quoteStmt.Close()
	for _, r := range run.Records {
		if _, err := quoteStmt.ExecContext(ctx, run.ID.String(), r.Serial, r.Quote, r.Link, r.Author); err != nil {
			return fmt.Errorf("failed to insert quote %d: %w", r.Serial, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Quotes returns the records of a stored run in serial order.
func (s *Store) Quotes(ctx context.Context, runID uuid.UUID) ([]scraper.QuoteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT serial, quote, link, author FROM quotes WHERE run_id = ? ORDER BY serial`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var out []scraper.QuoteRecord
	for rows.Next() {
		var r scraper.QuoteRecord
		if err := rows.Scan(&r.Serial, &r.Quote, &r.Link, &r.Author); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SourceSummary is a stored per-source row.
type SourceSummary struct {
	SourceID string
	Pages    int
	Records  int
	Dropped  int
	Stop     string
}

// Sources returns the per-source summary of a stored run in submission order.
func (s *Store) Sources(ctx context.Context, runID uuid.UUID) ([]SourceSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, pages, records, dropped, stop FROM sources WHERE run_id = ? ORDER BY position`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var s SourceSummary
		if err := rows.Scan(&s.SourceID, &s.Pages, &s.Records, &s.Dropped, &s.Stop); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
