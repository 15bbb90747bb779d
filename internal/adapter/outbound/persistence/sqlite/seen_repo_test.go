package sqlite_test

import (
	"context"
	"testing"

	"github.com/jonny/guardian/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/guardian/internal/ingest"
)

func TestSeenHashRepo_MarkAndCheck(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewSeenHashRepo(store)
	ctx := context.Background()

	hash := ingest.HashContent([]byte("failed login burst"))

	seen, err := repo.Seen(ctx, hash)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("fresh hash reported as seen")
	}

	if err := repo.MarkSeen(ctx, hash, "watcher"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	seen, err = repo.Seen(ctx, hash)
	if err != nil {
		t.Fatalf("Seen after mark: %v", err)
	}
	if !seen {
		t.Error("marked hash not reported as seen")
	}
}

func TestSeenHashRepo_MarkSeenIdempotent(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewSeenHashRepo(store)
	ctx := context.Background()

	hash := ingest.HashContent([]byte("same content"))
	for i := 0; i < 3; i++ {
		if err := repo.MarkSeen(ctx, hash, "watcher"); err != nil {
			t.Fatalf("MarkSeen %d: %v", i, err)
		}
	}

	seen, err := repo.Seen(ctx, hash)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Error("hash not seen after repeated marks")
	}
}
