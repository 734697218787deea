// Package statestore records issued OAuth state tokens server-side so a
// state can be consumed at most once. The cookie round-trip alone only
// enforces expiry; the ledger adds single-use semantics on top of it.
package statestore

import (
	"context"
	"time"
)

// Store is the server-side ledger of outstanding OAuth states.
type Store interface {
	// Put records a freshly issued state for ttl.
	Put(ctx context.Context, state string, ttl time.Duration) error

	// Consume removes the state and reports whether it was present. A state
	// that was never issued, already consumed, or expired yields false.
	Consume(ctx context.Context, state string) (bool, error)
}
