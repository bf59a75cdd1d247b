package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"treasure-quest-service/internal/domain"
)

// SnapshotStore is a small durable key-value store scoped to one client.
// Load returns domain.ErrSnapshotNotFound when the key is absent.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

const snapshotKeyPrefix = "treasure:snapshot:"

// SnapshotKey is the fixed key under which a client's run is saved.
func SnapshotKey(clientID string) string {
	return snapshotKeyPrefix + clientID
}

func resultKey(snapshotKey string) string {
	return snapshotKey + ":result"
}

// finalRecord marks a run as finalized so a reconnect does not replay it.
type finalRecord struct {
	StartInstant int64            `json:"startInstant"`
	Result       domain.RunResult `json:"result"`
}

// PersistenceBridge saves and restores one client's session snapshot.
type PersistenceBridge struct {
	store  SnapshotStore
	key    string
	logger *slog.Logger
}

func NewPersistenceBridge(store SnapshotStore, clientID string, logger *slog.Logger) *PersistenceBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistenceBridge{
		store:  store,
		key:    SnapshotKey(clientID),
		logger: logger.With(slog.String("snapshot", SnapshotKey(clientID))),
	}
}

// Save writes the session snapshot.
func (b *PersistenceBridge) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := b.store.Save(ctx, b.key, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the saved session or nil. Missing, unreadable, malformed, partial and
// inconsistent snapshots all read as "no saved run"; all but missing ones are removed.
func (b *PersistenceBridge) Load(ctx context.Context) *Session {
	data, err := b.store.Load(ctx, b.key)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			b.logger.Warn("snapshot unreadable", slog.Any("err", err))
		}
		return nil
	}

	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		b.discard(ctx, err)
		return nil
	}
	session, err := SessionFromSnapshot(snap)
	if err != nil {
		b.discard(ctx, err)
		return nil
	}
	return session
}

// Discard removes a snapshot that can no longer be resumed.
func (b *PersistenceBridge) Discard(ctx context.Context, reason error) {
	b.discard(ctx, reason)
}

func (b *PersistenceBridge) discard(ctx context.Context, reason error) {
	b.logger.Warn("discarding saved session", slog.Any("reason", reason))
	if err := b.Clear(ctx); err != nil {
		b.logger.Warn("clear snapshot", slog.Any("err", err))
	}
}

// SaveResult records the final stats of the run that started at s.StartInstant.
func (b *PersistenceBridge) SaveResult(ctx context.Context, s *Session, result domain.RunResult) error {
	data, err := json.Marshal(finalRecord{StartInstant: s.StartInstant().UnixMilli(), Result: result})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := b.store.Save(ctx, resultKey(b.key), data); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LoadResult returns the recorded result of s if that run was already finalized.
func (b *PersistenceBridge) LoadResult(ctx context.Context, s *Session) *domain.RunResult {
	data, err := b.store.Load(ctx, resultKey(b.key))
	if err != nil {
		return nil
	}
	var rec finalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	if rec.StartInstant != s.StartInstant().UnixMilli() {
		return nil
	}
	return &rec.Result
}

// Clear removes the snapshot and any finalization record.
func (b *PersistenceBridge) Clear(ctx context.Context) error {
	return errors.Join(
		b.store.Delete(ctx, b.key),
		b.store.Delete(ctx, resultKey(b.key)),
	)
}
