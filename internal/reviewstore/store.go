package reviewstore

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/triage/internal/models"
)

// ErrNotFound is returned by Get when a review does not exist or has
// expired. Callers must not distinguish the two cases; an expired review is
// gone.
var ErrNotFound = errors.New("review not found")

// Store persists in-flight review state across stateless handler
// invocations. The contract is a whole-record get/put/delete with per-key
// expiry; there is no conditional write, so callers own any read-modify-write
// discipline.
type Store interface {
	// Put writes the full record, replacing any previous version, and sets
	// its expiry ttl from now.
	Put(ctx context.Context, review *models.ReviewRequest, ttl time.Duration) error

	// Get returns the record, or ErrNotFound if missing or expired.
	Get(ctx context.Context, id string) (*models.ReviewRequest, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all unexpired records, newest first.
	List(ctx context.Context) ([]*models.ReviewRequest, error)

	Close() error
}
