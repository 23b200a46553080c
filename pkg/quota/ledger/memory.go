package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryLedger implements Ledger with an in-memory map.
// All data is lost when the process exits.
//
// Every operation runs under a single mutex, which makes check-and-increment
// atomic within the process. It does not coordinate across replicas.
type MemoryLedger struct {
	// counts maps (actor, date key) to the consumed count.
	counts map[key]int

	// mu protects counts and closed.
	mu     sync.Mutex
	closed bool
}

type key struct {
	actorID string
	dateKey string
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		counts: make(map[key]int),
	}
}

// TryConsume increments the count if it is below limit.
func (m *MemoryLedger) TryConsume(ctx context.Context, actorID, dateKey string, limit int) (Consumption, error) {
	if err := validateConsume(actorID, dateKey, limit); err != nil {
		return Consumption{}, err
	}
	if err := ctx.Err(); err != nil {
		return Consumption{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Consumption{}, ErrClosed
	}

	k := key{actorID: actorID, dateKey: dateKey}
	count := m.counts[k]
	if count >= limit {
		return Consumption{Allowed: false}, nil
	}

	count++
	m.counts[k] = count
	return Consumption{Allowed: true, Count: count}, nil
}

// Release decrements the count, never below zero.
func (m *MemoryLedger) Release(ctx context.Context, actorID, dateKey string) error {
	if err := validateKey(actorID, dateKey); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	k := key{actorID: actorID, dateKey: dateKey}
	if count, ok := m.counts[k]; ok && count > 0 {
		m.counts[k] = count - 1
	}
	return nil
}

// Usage returns the current count.
func (m *MemoryLedger) Usage(ctx context.Context, actorID, dateKey string) (int, error) {
	if err := validateKey(actorID, dateKey); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	return m.counts[key{actorID: actorID, dateKey: dateKey}], nil
}

// Prune deletes records for date keys before beforeDateKey.
func (m *MemoryLedger) Prune(ctx context.Context, beforeDateKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	deleted := 0
	for k := range m.counts {
		if k.dateKey < beforeDateKey {
			delete(m.counts, k)
			deleted++
		}
	}
	return deleted, nil
}

// Records returns a snapshot of all records ordered by date key then actor.
func (m *MemoryLedger) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]Record, 0, len(m.counts))
	for k, count := range m.counts {
		records = append(records, Record{ActorID: k.actorID, DateKey: k.dateKey, Count: count})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DateKey != records[j].DateKey {
			return records[i].DateKey < records[j].DateKey
		}
		return records[i].ActorID < records[j].ActorID
	})
	return records
}

// Ping always succeeds unless the ledger is closed.
func (m *MemoryLedger) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the ledger closed. Close is idempotent.
func (m *MemoryLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
