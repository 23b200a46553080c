package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// runLedgerSuite exercises the properties every backend must satisfy.
func runLedgerSuite(t *testing.T, newLedger func(t *testing.T) Ledger) {
	t.Helper()

	t.Run("limit consumes allowed then denied", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		const limit = 5

		for i := 1; i <= limit; i++ {
			c, err := l.TryConsume(ctx, "anon:a", "2025-03-14", limit)
			if err != nil {
				t.Fatalf("TryConsume #%d failed: %v", i, err)
			}
			if !c.Allowed {
				t.Fatalf("TryConsume #%d denied, want allowed", i)
			}
			if c.Count != i {
				t.Errorf("TryConsume #%d count = %d, want %d", i, c.Count, i)
			}
		}

		c, err := l.TryConsume(ctx, "anon:a", "2025-03-14", limit)
		if err != nil {
			t.Fatalf("TryConsume over limit failed: %v", err)
		}
		if c.Allowed {
			t.Error("TryConsume over limit allowed, want denied")
		}

		used, err := l.Usage(ctx, "anon:a", "2025-03-14")
		if err != nil {
			t.Fatalf("Usage failed: %v", err)
		}
		if used != limit {
			t.Errorf("Usage = %d, want %d (denial must not mutate)", used, limit)
		}
	})

	t.Run("release restores availability", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			if _, err := l.TryConsume(ctx, "user:1", "2025-03-14", 2); err != nil {
				t.Fatalf("TryConsume failed: %v", err)
			}
		}
		if c, _ := l.TryConsume(ctx, "user:1", "2025-03-14", 2); c.Allowed {
			t.Fatal("expected exhausted quota")
		}

		if err := l.Release(ctx, "user:1", "2025-03-14"); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		used, _ := l.Usage(ctx, "user:1", "2025-03-14")
		if used != 1 {
			t.Errorf("Usage after release = %d, want 1", used)
		}

		c, err := l.TryConsume(ctx, "user:1", "2025-03-14", 2)
		if err != nil {
			t.Fatalf("TryConsume after release failed: %v", err)
		}
		if !c.Allowed || c.Count != 2 {
			t.Errorf("TryConsume after release = %+v, want allowed with count 2", c)
		}
	})

	t.Run("release at zero stays zero", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		// No record at all
		if err := l.Release(ctx, "anon:none", "2025-03-14"); err != nil {
			t.Fatalf("Release on missing record failed: %v", err)
		}
		used, _ := l.Usage(ctx, "anon:none", "2025-03-14")
		if used != 0 {
			t.Errorf("Usage = %d, want 0", used)
		}

		// Record drained to zero, then released again
		if _, err := l.TryConsume(ctx, "anon:z", "2025-03-14", 3); err != nil {
			t.Fatalf("TryConsume failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			if err := l.Release(ctx, "anon:z", "2025-03-14"); err != nil {
				t.Fatalf("Release #%d failed: %v", i, err)
			}
		}
		used, _ = l.Usage(ctx, "anon:z", "2025-03-14")
		if used != 0 {
			t.Errorf("Usage = %d, want 0 (floor)", used)
		}
	})

	t.Run("date key rollover gives fresh quota", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		if _, err := l.TryConsume(ctx, "anon:r", "2025-03-14", 1); err != nil {
			t.Fatalf("TryConsume failed: %v", err)
		}
		if c, _ := l.TryConsume(ctx, "anon:r", "2025-03-14", 1); c.Allowed {
			t.Fatal("expected exhausted quota on day D")
		}

		c, err := l.TryConsume(ctx, "anon:r", "2025-03-15", 1)
		if err != nil {
			t.Fatalf("TryConsume on D+1 failed: %v", err)
		}
		if !c.Allowed || c.Count != 1 {
			t.Errorf("TryConsume on D+1 = %+v, want allowed with count 1", c)
		}
	})

	t.Run("actors are isolated", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		if _, err := l.TryConsume(ctx, "user:a", "2025-03-14", 1); err != nil {
			t.Fatalf("TryConsume failed: %v", err)
		}
		c, err := l.TryConsume(ctx, "user:b", "2025-03-14", 1)
		if err != nil {
			t.Fatalf("TryConsume failed: %v", err)
		}
		if !c.Allowed {
			t.Error("second actor denied, want allowed")
		}
	})

	t.Run("concurrent consumes never exceed limit", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		const (
			limit    = 7
			attempts = 40
		)

		var (
			wg      sync.WaitGroup
			allowed atomic.Int64
			denied  atomic.Int64
			failed  atomic.Int64
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := l.TryConsume(ctx, "anon:tabs", "2025-03-14", limit)
				switch {
				case err != nil:
					failed.Add(1)
				case c.Allowed:
					allowed.Add(1)
				default:
					denied.Add(1)
				}
			}()
		}
		wg.Wait()

		if failed.Load() != 0 {
			t.Fatalf("%d concurrent calls failed", failed.Load())
		}
		if allowed.Load() != limit {
			t.Errorf("allowed = %d, want %d", allowed.Load(), limit)
		}
		if denied.Load() != attempts-limit {
			t.Errorf("denied = %d, want %d", denied.Load(), attempts-limit)
		}

		used, _ := l.Usage(ctx, "anon:tabs", "2025-03-14")
		if used != limit {
			t.Errorf("Usage = %d, want %d", used, limit)
		}
	})

	t.Run("prune removes past days only", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		for _, day := range []string{"2025-03-10", "2025-03-11", "2025-03-14"} {
			if _, err := l.TryConsume(ctx, "anon:p", day, 5); err != nil {
				t.Fatalf("TryConsume failed: %v", err)
			}
		}

		deleted, err := l.Prune(ctx, "2025-03-12")
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if deleted != 2 {
			t.Errorf("Prune deleted %d, want 2", deleted)
		}

		used, _ := l.Usage(ctx, "anon:p", "2025-03-14")
		if used != 1 {
			t.Errorf("Usage for kept day = %d, want 1", used)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		tests := []struct {
			name    string
			actorID string
			dateKey string
			limit   int
		}{
			{"empty actor", "", "2025-03-14", 5},
			{"empty date key", "anon:x", "", 5},
			{"zero limit", "anon:x", "2025-03-14", 0},
			{"negative limit", "anon:x", "2025-03-14", -1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := l.TryConsume(ctx, tt.actorID, tt.dateKey, tt.limit)
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("TryConsume error = %v, want ErrInvalidArgument", err)
				}
			})
		}

		if err := l.Release(ctx, "", "2025-03-14"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Release error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		l := newLedger(t)
		if err := l.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
