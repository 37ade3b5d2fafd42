package status

import (
	"context"
	"errors"
	"time"
)

// Terminal statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultTTL is how long a record survives after a terminal write.
const DefaultTTL = 5 * time.Minute

var ErrNotFound = errors.New("status not found")

// Record is the last known progress of one request.
type Record struct {
	RequestID string    `json:"requestId"`
	Status    string    `json:"status"`
	Details   string    `json:"details"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether no further updates are expected.
func (r Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Store persists records. A zero ttl means no expiry.
type Store interface {
	Put(ctx context.Context, rec Record, ttl time.Duration) error
	Get(ctx context.Context, requestID string) (Record, error)
}
