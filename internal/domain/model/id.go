package model

import "github.com/oklog/ulid/v2"

// generateID returns a ULID: lexicographically sortable by creation time.
func generateID() string {
	return ulid.Make().String()
}

// NewApprovalToken mints the opaque token attached to an incident that
// requires a human decision.
func NewApprovalToken() string {
	return ulid.Make().String()
}
