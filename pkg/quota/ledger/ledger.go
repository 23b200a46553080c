package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when an actor, date key or limit is unusable.
	ErrInvalidArgument = errors.New("invalid ledger argument")

	// ErrClosed is returned by operations on a closed ledger.
	ErrClosed = errors.New("ledger is closed")
)

// Ledger is the quota counter store.
// Implementations must be safe for concurrent use and must perform
// TryConsume and Release as single atomic operations on the backing store.
type Ledger interface {
	// TryConsume increments the count for (actorID, dateKey) if it is below
	// limit. When the count has already reached limit nothing is mutated and
	// Allowed is false. A missing record counts as zero.
	TryConsume(ctx context.Context, actorID, dateKey string, limit int) (Consumption, error)

	// Release decrements the count for (actorID, dateKey), never below zero.
	// Releasing a missing record or a record at zero is a no-op.
	Release(ctx context.Context, actorID, dateKey string) error

	// Usage returns the current count for (actorID, dateKey), zero if absent.
	Usage(ctx context.Context, actorID, dateKey string) (int, error)

	// Prune deletes every record whose date key sorts before beforeDateKey
	// and returns the number of records removed.
	Prune(ctx context.Context, beforeDateKey string) (int, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the ledger.
	Close() error
}

// Consumption is the outcome of a TryConsume call.
type Consumption struct {
	// Allowed is true when a unit was consumed.
	Allowed bool

	// Count is the count after the increment. Zero when not allowed.
	Count int
}

// Record is a single ledger row, used by listing and admin tooling.
type Record struct {
	ActorID string `json:"actor_id"`
	DateKey string `json:"date_key"`
	Count   int    `json:"count"`
}

func validateKey(actorID, dateKey string) error {
	if actorID == "" {
		return fmt.Errorf("%w: actor id cannot be empty", ErrInvalidArgument)
	}
	if dateKey == "" {
		return fmt.Errorf("%w: date key cannot be empty", ErrInvalidArgument)
	}
	return nil
}

func validateConsume(actorID, dateKey string, limit int) error {
	if err := validateKey(actorID, dateKey); err != nil {
		return err
	}
	if limit < 1 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}
	return nil
}
