package status

import (
	"context"
	"log/slog"
	"time"
)

// Tracker records per-request progress for polling clients.
type Tracker struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

type TrackerOption func(*Tracker)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) TrackerOption {
	return func(t *Tracker) { t.ttl = ttl }
}

// WithClock injects the time source used for UpdatedAt.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{store: store, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetStatus records a non-terminal status. An empty id is ignored.
func (t *Tracker) SetStatus(ctx context.Context, id, status, details string) error {
	return t.put(ctx, id, status, details, 0)
}

// Complete records success; the record expires after the TTL.
func (t *Tracker) Complete(ctx context.Context, id, details string) error {
	return t.put(ctx, id, StatusCompleted, details, t.ttl)
}

// Fail records failure; the record expires after the TTL.
func (t *Tracker) Fail(ctx context.Context, id, errMsg string) error {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return t.put(ctx, id, StatusFailed, errMsg, t.ttl)
}

func (t *Tracker) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, ErrNotFound
	}
	return t.store.Get(ctx, id)
}

func (t *Tracker) put(ctx context.Context, id, status, details string, ttl time.Duration) error {
	if id == "" {
		return nil
	}
	return t.store.Put(ctx, Record{
		RequestID: id,
		Status:    status,
		Details:   details,
		UpdatedAt: t.now().UTC(),
	}, ttl)
}

// Hook returns an event callback that records every event for id. Store
// errors are logged and dropped.
func (t *Tracker) Hook(id string) func(status, details string) {
	return func(status, details string) {
		if err := t.SetStatus(context.Background(), id, status, details); err != nil {
			slog.Warn("Status update failed", "request_id", id, "status", status, "err", err)
		}
	}
}
