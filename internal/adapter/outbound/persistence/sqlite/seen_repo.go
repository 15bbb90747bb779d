package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// SeenHashRepo implements outbound.SeenHashRepository using SQLite.
type SeenHashRepo struct {
	db *sql.DB
}

func NewSeenHashRepo(store *Store) *SeenHashRepo {
	return &SeenHashRepo{db: store.DB}
}

var _ outbound.SeenHashRepository = (*SeenHashRepo)(nil)

func (r *SeenHashRepo) Seen(ctx context.Context, hash string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_hashes WHERE hash = ?`, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("querying seen hash: %w", err)
	}
	return count > 0, nil
}

func (r *SeenHashRepo) MarkSeen(ctx context.Context, hash, source string) error {
	const q = `INSERT INTO seen_hashes (hash, source, first_seen) VALUES (?,?,?)
		ON CONFLICT(hash) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, hash, source, time.Now().UTC()); err != nil {
		return fmt.Errorf("marking hash seen: %w", err)
	}
	return nil
}
