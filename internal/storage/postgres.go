package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/IshaanNene/wikicat/internal/config"
	"github.com/IshaanNene/wikicat/internal/types"
)

const postgresPingTimeout = 5 * time.Second

// PostgresStorage upserts records into a PostgreSQL table keyed by title.
// Mined fields are stored as JSONB.
type PostgresStorage struct {
	db     *sqlx.DB
	table  string
	runID  string
	count  int
	logger *slog.Logger
}

// NewPostgresStorage connects to cfg.DSN and ensures the table exists.
func NewPostgresStorage(cfg *config.PostgresConfig, runID string, logger *slog.Logger) (*PostgresStorage, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), postgresPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStorageFromDB(db, cfg.Table, runID, logger)
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStorageFromDB wraps an existing connection.
func NewPostgresStorageFromDB(db *sqlx.DB, table, runID string, logger *slog.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:     db,
		table:  pq.QuoteIdentifier(table),
		runID:  runID,
		logger: logger.With("component", "postgres_storage"),
	}
}

func (s *PostgresStorage) Name() string { return "postgres" }

// EnsureSchema creates the target table when missing.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	title             TEXT PRIMARY KEY,
	categories        TEXT[] NOT NULL,
	namespace         INTEGER NOT NULL,
	page_id           BIGINT NOT NULL,
	views             DOUBLE PRECISION,
	views_unavailable BOOLEAN NOT NULL DEFAULT FALSE,
	fields            JSONB NOT NULL DEFAULT '{}',
	run_id            TEXT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStorage) upsertQuery() string {
	return fmt.Sprintf(`INSERT INTO %s
	(title, categories, namespace, page_id, views, views_unavailable, fields, run_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (title) DO UPDATE SET
	categories = EXCLUDED.categories,
	namespace = EXCLUDED.namespace,
	page_id = EXCLUDED.page_id,
	views = EXCLUDED.views,
	views_unavailable = EXCLUDED.views_unavailable,
	fields = EXCLUDED.fields,
	run_id = EXCLUDED.run_id,
	updated_at = EXCLUDED.updated_at`, s.table)
}

// Store upserts records in one transaction.
func (s *PostgresStorage) Store(records []*types.PageRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, s.upsertQuery())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("encode fields of %q: %w", r.Title, err)
		}

		var views sql.NullFloat64
		unavailable := false
		if r.Views != nil {
			if math.IsNaN(*r.Views) {
				unavailable = true
			} else {
				views = sql.NullFloat64{Float64: *r.Views, Valid: true}
			}
		}

		if _, err := stmt.ExecContext(ctx,
			r.Title,
			pq.StringArray(r.Categories),
			r.Namespace,
			r.PageID,
			views,
			unavailable,
			fields,
			s.runID,
			now,
		); err != nil {
			return fmt.Errorf("upsert %q: %w", r.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.count += len(records)
	return nil
}

func (s *PostgresStorage) Close() error {
	s.logger.Info("postgres storage closing", "total_records", s.count)
	return s.db.Close()
}
