package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"treasure-quest-service/internal/domain"
)

// LevelLoader loads the riddle set from the questions table.
type LevelLoader struct {
	pool *pgxpool.Pool
}

func NewLevelLoader(pool *pgxpool.Pool) *LevelLoader {
	return &LevelLoader{pool: pool}
}

func (l *LevelLoader) LoadLevels(ctx context.Context) ([]domain.Level, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT question_number, question_text, answer, hint, hint_password, clues
		FROM questions
		ORDER BY question_number`)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	defer rows.Close()

	var levels []domain.Level
	for rows.Next() {
		var (
			lvl   domain.Level
			clues []byte
		)
		if err := rows.Scan(&lvl.Number, &lvl.Prompt, &lvl.Answer, &lvl.Hint, &lvl.HintPassword, &clues); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		if len(clues) > 0 {
			if err := json.Unmarshal(clues, &lvl.Clues); err != nil {
				return nil, fmt.Errorf("unmarshal clues of level %d: %w", lvl.Number, err)
			}
		}
		levels = append(levels, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	if len(levels) == 0 {
		return nil, domain.ErrContentUnavailable
	}
	return levels, nil
}

// ReplaceLevels swaps the whole riddle set in one transaction. Answers are stored trimmed
// and lower-cased.
func (l *LevelLoader) ReplaceLevels(ctx context.Context, levels []domain.Level) error {
	ordered, err := domain.ValidateLevels(levels)
	if err != nil {
		return err
	}
	return l.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		batch := &pgx.Batch{}
		for _, lvl := range ordered {
			clues, err := json.Marshal(lvl.Clues)
			if err != nil {
				return fmt.Errorf("marshal clues of level %d: %w", lvl.Number, err)
			}
			batch.Queue(`
				INSERT INTO questions (question_number, question_text, answer, hint, hint_password, clues)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				lvl.Number, lvl.Prompt, strings.ToLower(strings.TrimSpace(lvl.Answer)),
				lvl.Hint, lvl.HintPassword, string(clues))
		}
		results := tx.SendBatch(ctx, batch)
		for range ordered {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert level: %w", err)
			}
		}
		return results.Close()
	})
}
