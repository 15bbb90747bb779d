// Package ingest suppresses duplicate submissions from passive sources.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Deduper decides whether scanned content has been submitted before, keyed
// by content hash. Accepted hashes are persisted, so re-scanning the same
// source after a restart never double-submits. Direct API submissions do
// not pass through here.
type Deduper struct {
	seen outbound.SeenHashRepository
}

func NewDeduper(seen outbound.SeenHashRepository) *Deduper {
	return &Deduper{seen: seen}
}

// HashContent returns the dedup key for a payload.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ShouldSubmit reports whether the content is new to the ingest pipeline.
func (d *Deduper) ShouldSubmit(ctx context.Context, content []byte) (bool, error) {
	seen, err := d.seen.Seen(ctx, HashContent(content))
	if err != nil {
		return false, fmt.Errorf("checking seen hash: %w", err)
	}
	return !seen, nil
}

// MarkSubmitted remembers the content after a successful submission.
func (d *Deduper) MarkSubmitted(ctx context.Context, content []byte, source string) error {
	if err := d.seen.MarkSeen(ctx, HashContent(content), source); err != nil {
		return fmt.Errorf("marking seen hash: %w", err)
	}
	return nil
}
