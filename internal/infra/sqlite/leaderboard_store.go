// Package sqlite provides a SQLite-backed leaderboard for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"treasure-quest-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS treasure_unlocks (
	id            TEXT PRIMARY KEY,
	player_name   TEXT NOT NULL,
	level_reached INTEGER NOT NULL,
	attempts      INTEGER NOT NULL,
	time_taken    INTEGER,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS treasure_unlocks_created_at_idx ON treasure_unlocks (created_at);
`

// LeaderboardStore persists completed runs in SQLite.
type LeaderboardStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and creates the schema.
func Open(path string) (*LeaderboardStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &LeaderboardStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *LeaderboardStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *LeaderboardStore) Insert(ctx context.Context, entry domain.LeaderboardEntry) error {
	var timeTaken sql.NullInt64
	if entry.TimeTakenSeconds != nil {
		timeTaken = sql.NullInt64{Int64: int64(*entry.TimeTakenSeconds), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO treasure_unlocks (id, player_name, level_reached, attempts, time_taken, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DisplayName, entry.LevelReached, entry.Attempts, timeTaken, toMillis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert unlock: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) List(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	var sinceMillis int64
	if !since.IsZero() {
		sinceMillis = toMillis(since)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, player_name, level_reached, attempts, time_taken, created_at
		 FROM treasure_unlocks
		 WHERE created_at >= ?
		 ORDER BY time_taken IS NULL, time_taken ASC, created_at ASC
		 LIMIT ?`,
		sinceMillis, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var (
			entry     domain.LeaderboardEntry
			timeTaken sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.DisplayName, &entry.LevelReached, &entry.Attempts, &timeTaken, &createdAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		if timeTaken.Valid {
			v := int(timeTaken.Int64)
			entry.TimeTakenSeconds = &v
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	return entries, nil
}

// DeleteAll removes every row inside one transaction.
func (s *LeaderboardStore) DeleteAll(ctx context.Context) (int, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM treasure_unlocks`)
	if err != nil {
		return 0, fmt.Errorf("delete unlocks: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted unlocks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reset: %w", err)
	}
	return int(removed), nil
}
