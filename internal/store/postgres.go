package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations from multiple services.
	// Note: In production, use dedicated migration tools (e.g., golang-migrate/migrate)
	// that run as a separate deployment step before app services start.
	const lockID = 472950318 // arbitrary number for this application's migration lock

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			provider TEXT,
			model TEXT,
			source_text TEXT,
			status TEXT,
			attempts INT DEFAULT 0,
			error TEXT DEFAULT '',
			nugget_types TEXT[] DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS nuggets (
			id UUID PRIMARY KEY,
			run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
			ord INT,
			type TEXT,
			start_content TEXT,
			end_content TEXT,
			synthesis TEXT,
			start_offset INT,
			end_offset INT,
			confidence DOUBLE PRECISION
		);`,
		`CREATE INDEX IF NOT EXISTS nuggets_run_idx ON nuggets(run_id, ord);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, providerID, model, sourceText string) (Run, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, provider, model, source_text, status) VALUES($1,$2,$3,$4,$5)`,
		id, providerID, model, sourceText, StatusProcessing)
	if err != nil {
		return Run{}, err
	}
	return Run{
		ID:         id,
		Provider:   providerID,
		Model:      model,
		SourceText: sourceText,
		Status:     StatusProcessing,
		CreatedAt:  time.Now(),
	}, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, provider, model, source_text, status, attempts, error, nugget_types, created_at
		FROM runs WHERE id=$1`, id).
		Scan(&r.ID, &r.Provider, &r.Model, &r.SourceText, &r.Status, &r.Attempts, &r.Error,
			pq.Array(&r.NuggetTypes), &r.CreatedAt)
	if err == sql.ErrNoRows {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, id uuid.UUID, attempts int, nuggets []SavedNugget) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status=$1, attempts=$2, nugget_types=$3 WHERE id=$4`,
		StatusCompleted, attempts, pq.Array(distinctTypes(nuggets)), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}

	for i, n := range nuggets {
		nid := n.ID
		if nid == uuid.Nil {
			nid = uuid.New()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nuggets(id, run_id, ord, type, start_content, end_content, synthesis, start_offset, end_offset, confidence)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			nid, id, i, n.Type, n.StartContent, n.EndContent, n.Synthesis,
			n.StartOffset, n.EndOffset, n.Confidence)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) FailRun(ctx context.Context, id uuid.UUID, attempts int, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=$1, attempts=$2, error=$3 WHERE id=$4`,
		StatusFailed, attempts, message, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *PostgresStore) ListNuggets(ctx context.Context, runID uuid.UUID) ([]SavedNugget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, ord, type, start_content, end_content, synthesis, start_offset, end_offset, confidence
		FROM nuggets WHERE run_id=$1 ORDER BY ord`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedNugget
	for rows.Next() {
		var n SavedNugget
		if err := rows.Scan(&n.ID, &n.RunID, &n.Index, &n.Type, &n.StartContent, &n.EndContent,
			&n.Synthesis, &n.StartOffset, &n.EndOffset, &n.Confidence); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func distinctTypes(nuggets []SavedNugget) []string {
	seen := make(map[string]bool)
	var types []string
	for _, n := range nuggets {
		if !seen[n.Type] {
			seen[n.Type] = true
			types = append(types, n.Type)
		}
	}
	return types
}
