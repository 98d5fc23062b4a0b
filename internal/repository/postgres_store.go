package repository

import (
	"context"
	"errors"
	"fmt"

	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"
	"Wonderland/pkg/postgres"

	"github.com/jackc/pgx/v5"
)

// PostgresMigrations creates the task shadow and instruct tables.
var PostgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_timestamp ON tasks (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS instructs (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		instruct TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_instructs_kind_timestamp ON instructs (kind, timestamp DESC)`,
}

// PostgresStore implements TaskStore and InstructStore.
type PostgresStore struct {
	db *postgres.DB
}

var (
	_ domrepo.TaskStore     = (*PostgresStore)(nil)
	_ domrepo.InstructStore = (*PostgresStore)(nil)
)

func NewPostgresStore(db *postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveTask upserts the shadow row on every status transition.
func (s *PostgresStore) SaveTask(ctx context.Context, rec models.TaskRecord) error {
	query := `
		INSERT INTO tasks (id, type, description, status, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, timestamp = EXCLUDED.timestamp`
	if _, err := s.db.Pool.Exec(ctx, query, rec.ID, rec.Type, rec.Description, string(rec.Status), rec.Timestamp); err != nil {
		return fmt.Errorf("save task %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) RecentTasks(ctx context.Context, limit int) ([]models.TaskRecord, error) {
	query := `SELECT id::text, type, description, status, timestamp FROM tasks ORDER BY timestamp DESC LIMIT $1`
	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent tasks: %w", err)
	}
	defer rows.Close()

	var out []models.TaskRecord
	for rows.Next() {
		var rec models.TaskRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Description, &status, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec.Status = models.TaskStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddInstruct(ctx context.Context, in *models.Instruct) error {
	query := `INSERT INTO instructs (id, kind, instruct, timestamp) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Pool.Exec(ctx, query, in.ID, string(in.Kind), in.Instruct, in.Timestamp); err != nil {
		return fmt.Errorf("add instruct: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestInstruct(ctx context.Context, kind models.InstructKind) (*models.Instruct, error) {
	query := `SELECT id::text, kind, instruct, timestamp FROM instructs WHERE kind = $1 ORDER BY timestamp DESC LIMIT 1`
	var in models.Instruct
	var k string
	err := s.db.Pool.QueryRow(ctx, query, string(kind)).Scan(&in.ID, &k, &in.Instruct, &in.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest instruct: %w", err)
	}
	in.Kind = models.InstructKind(k)
	return &in, nil
}
