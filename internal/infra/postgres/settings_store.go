package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"treasure-quest-service/internal/domain"
)

// SettingsStore reads and writes the single admin_config row.
type SettingsStore struct {
	pool *pgxpool.Pool
}

func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// GameDurationMinutes returns the configured duration, or the default when unset.
func (s *SettingsStore) GameDurationMinutes(ctx context.Context) (int, error) {
	var minutes int
	err := s.pool.QueryRow(ctx, `SELECT game_duration_minutes FROM admin_config WHERE id = 1`).Scan(&minutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultDurationMinutes, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load game duration: %w", err)
	}
	return minutes, nil
}

func (s *SettingsStore) SetGameDurationMinutes(ctx context.Context, minutes int) error {
	if minutes < domain.MinDurationMinutes || minutes > domain.MaxDurationMinutes {
		return fmt.Errorf("%w: %d", domain.ErrInvalidDuration, minutes)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_config (id, game_duration_minutes, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET game_duration_minutes = EXCLUDED.game_duration_minutes, updated_at = now()`, minutes)
	if err != nil {
		return fmt.Errorf("save game duration: %w", err)
	}
	return nil
}
