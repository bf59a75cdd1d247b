package file

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"treasure-quest-service/internal/domain"
)

// SnapshotStore keeps one JSON file per key under dir. Files untouched for longer than
// maxAge are treated as missing and removed; zero disables expiry.
type SnapshotStore struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewSnapshotStore(dir string, maxAge time.Duration, logger *slog.Logger) (*SnapshotStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{dir: filepath.Clean(dir), maxAge: maxAge, now: time.Now, logger: logger}, nil
}

func (s *SnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.path(key)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if s.expired(info.ModTime()) {
		s.logger.Debug("snapshot file too old, removing", slog.String("path", path))
		_ = os.Remove(path)
		return nil, domain.ErrSnapshotNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Save writes through a temp file and rename so readers never see a partial snapshot.
func (s *SnapshotStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Cleanup removes snapshot files older than maxAge and reports how many were removed.
func (s *SnapshotStore) Cleanup(ctx context.Context) (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read snapshot directory: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !s.expired(info.ModTime()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("remove old snapshot", slog.String("file", entry.Name()), slog.Any("err", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("snapshot cleanup", slog.Int("removed", removed))
	}
	return removed, nil
}

func (s *SnapshotStore) expired(modTime time.Time) bool {
	return s.maxAge > 0 && s.now().Sub(modTime) > s.maxAge
}

// path maps an arbitrary key onto a safe file name.
func (s *SnapshotStore) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}
