package memory

import (
	"context"
	"errors"
	"testing"

	"treasure-quest-service/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "k"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := store.Load(ctx, "k")
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("unexpected load %q %v", data, err)
	}
	_ = store.Delete(ctx, "k")
	if _, err := store.Load(ctx, "k"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
