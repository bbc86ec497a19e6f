package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
)

// PostgresRepository serializes access to its single connection.
type PostgresRepository struct {
	lock sync.Mutex
	conn *pgx.Conn
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	room_id TEXT PRIMARY KEY,
	code TEXT NOT NULL,
	ending TEXT NOT NULL,
	used TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ,
	ended_at TIMESTAMPTZ NOT NULL,
	air_remaining INTEGER NOT NULL,
	puzzles_solved JSONB NOT NULL DEFAULT '[]',
	players JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS runs_ended_at_idx ON runs (ended_at DESC);
`

// NewPostgresRepository creates a new PostgresRepository.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}
	return &PostgresRepository{
		conn: conn,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return conn, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveRun(ctx context.Context, run *models.RunRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	puzzles, players, err := encodeRunLists(run)
	if err != nil {
		return err
	}

	q := `
	INSERT INTO runs (room_id, code, ending, used, started_at, ended_at, air_remaining, puzzles_solved, players)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (room_id) DO UPDATE SET ending = $3, used = $4, ended_at = $6, air_remaining = $7, puzzles_solved = $8, players = $9;
	`
	_, err = r.conn.Exec(ctx, q, run.RoomID, run.Code, run.Ending, run.Used, run.StartedAt, run.EndedAt, run.AirRemaining, puzzles, players)
	if err != nil {
		return fmt.Errorf("failed to insert run: %v", err)
	}

	return nil
}

const selectPostgresRun = `
SELECT room_id, code, ending, used, started_at, ended_at, air_remaining, puzzles_solved::text, players::text FROM runs
`

func (r *PostgresRepository) GetRun(ctx context.Context, roomID string) (*models.RunRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	run, err := scanPostgresRun(r.conn.QueryRow(ctx, selectPostgresRun+" WHERE room_id = $1;", roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan run: %v", err)
	}
	return run, nil
}

func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	rows, err := r.conn.Query(ctx, selectPostgresRun+" ORDER BY ended_at DESC LIMIT $1;", listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %v", err)
	}
	defer rows.Close()

	runs := []*models.RunRecord{}
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %v", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %v", err)
	}
	return runs, nil
}

func scanPostgresRun(row pgx.Row) (*models.RunRecord, error) {
	run := &models.RunRecord{}
	var startedAt *time.Time
	var puzzles, players string
	if err := row.Scan(&run.RoomID, &run.Code, &run.Ending, &run.Used, &startedAt, &run.EndedAt, &run.AirRemaining, &puzzles, &players); err != nil {
		return nil, err
	}
	run.StartedAt = startedAt
	if err := decodeRunLists(run, puzzles, players); err != nil {
		return nil, err
	}
	return run, nil
}
