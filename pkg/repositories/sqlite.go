package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cbodonnell/pyramid/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(dir, func(i, j int) bool { return dir[i].Name() < dir[j].Name() })

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveRun(ctx context.Context, run *models.RunRecord) error {
	puzzles, players, err := encodeRunLists(run)
	if err != nil {
		return err
	}

	q := `
	INSERT OR REPLACE INTO runs (room_id, code, ending, used, started_at, ended_at, air_remaining, puzzles_solved, players)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, q, run.RoomID, run.Code, run.Ending, run.Used,
		unixMilliOrNil(run.StartedAt), run.EndedAt.UnixMilli(), run.AirRemaining, puzzles, players)
	if err != nil {
		return fmt.Errorf("failed to insert run: %v", err)
	}

	return nil
}

const selectRun = `
SELECT room_id, code, ending, used, started_at, ended_at, air_remaining, puzzles_solved, players FROM runs
`

func (r *SQLiteRepository) GetRun(ctx context.Context, roomID string) (*models.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRun+" WHERE room_id = ?;", roomID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan run: %v", err)
	}
	return run, nil
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectRun+" ORDER BY ended_at DESC LIMIT ?;", listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %v", err)
	}
	defer rows.Close()

	runs := []*models.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.RunRecord, error) {
	run := &models.RunRecord{}
	var startedAt sql.NullInt64
	var endedAt int64
	var puzzles, players string
	if err := s.Scan(&run.RoomID, &run.Code, &run.Ending, &run.Used, &startedAt, &endedAt, &run.AirRemaining, &puzzles, &players); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64).UTC()
		run.StartedAt = &t
	}
	run.EndedAt = time.UnixMilli(endedAt).UTC()
	if err := decodeRunLists(run, puzzles, players); err != nil {
		return nil, err
	}
	return run, nil
}

func unixMilliOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func encodeRunLists(run *models.RunRecord) (string, string, error) {
	puzzles, err := json.Marshal(run.PuzzlesSolved)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal puzzles: %v", err)
	}
	players, err := json.Marshal(run.Players)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal players: %v", err)
	}
	return string(puzzles), string(players), nil
}

func decodeRunLists(run *models.RunRecord, puzzles, players string) error {
	if err := json.Unmarshal([]byte(puzzles), &run.PuzzlesSolved); err != nil {
		return fmt.Errorf("failed to unmarshal puzzles: %v", err)
	}
	if err := json.Unmarshal([]byte(players), &run.Players); err != nil {
		return fmt.Errorf("failed to unmarshal players: %v", err)
	}
	return nil
}
