package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"treasure-quest-service/internal/domain"
)

type unlockRow struct {
	bun.BaseModel `bun:"table:treasure_unlocks,alias:u"`

	ID           string    `bun:"id,pk,type:uuid"`
	PlayerName   string    `bun:"player_name,notnull"`
	LevelReached int       `bun:"level_reached,notnull"`
	Attempts     int       `bun:"attempts,notnull"`
	TimeTaken    *int      `bun:"time_taken"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// LeaderboardStore keeps completed runs in the treasure_unlocks table.
type LeaderboardStore struct {
	db *bun.DB
}

func NewLeaderboardStore(db *bun.DB) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

func (s *LeaderboardStore) Insert(ctx context.Context, entry domain.LeaderboardEntry) error {
	row := unlockRow{
		ID:           entry.ID,
		PlayerName:   entry.DisplayName,
		LevelReached: entry.LevelReached,
		Attempts:     entry.Attempts,
		TimeTaken:    entry.TimeTakenSeconds,
		CreatedAt:    entry.CreatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert unlock: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) List(ctx context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []unlockRow
	q := s.db.NewSelect().
		Model(&rows).
		OrderExpr("u.time_taken ASC NULLS LAST").
		OrderExpr("u.created_at ASC")
	if !since.IsZero() {
		q = q.Where("u.created_at >= ?", since.UTC())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			ID:               row.ID,
			DisplayName:      row.PlayerName,
			LevelReached:     row.LevelReached,
			Attempts:         row.Attempts,
			TimeTakenSeconds: row.TimeTaken,
			CreatedAt:        row.CreatedAt,
		})
	}
	return entries, nil
}

// DeleteAll removes every row in one transaction.
func (s *LeaderboardStore) DeleteAll(ctx context.Context) (int, error) {
	var removed int64
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*unlockRow)(nil)).Where("TRUE").Exec(ctx)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete unlocks: %w", err)
	}
	return int(removed), nil
}
