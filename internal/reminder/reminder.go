package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Store is the slice of persistence the reminder scan needs.
// *storage.DB satisfies it.
type Store interface {
	ListOwners(ctx context.Context) ([]int64, error)
	CountDue(ctx context.Context, ownerID int64, asOf time.Time) (int, error)
}

// Notifier delivers a "you have cards due today" message to one user.
// Delivery transport (chat message, email) is the collaborator's concern.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64) error
}

// Trigger runs the daily due-card scan and tells the notifier about every
// user with something to review.
type Trigger struct {
	store       Store
	notifier    Notifier
	now         func() time.Time
	concurrency int
}

// New creates a Trigger. now may be nil (defaults to time.Now);
// concurrency <= 0 falls back to 4 parallel notifications.
func New(store Store, notifier Notifier, now func() time.Time, concurrency int) *Trigger {
	if now == nil {
		now = time.Now
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Trigger{store: store, notifier: notifier, now: now, concurrency: concurrency}
}

// HasDueToday reports whether the user has at least one card due today.
func (t *Trigger) HasDueToday(ctx context.Context, ownerID int64) (bool, error) {
	n, err := t.store.CountDue(ctx, ownerID, t.now())
	if err != nil {
		return false, fmt.Errorf("count due for owner %d: %w", ownerID, err)
	}
	return n > 0, nil
}

// Run scans every owner once and notifies those with due cards. A failed
// notification is logged and never aborts the remaining users; Run only
// errors when the owner list itself cannot be read.
func (t *Trigger) Run(ctx context.Context) error {
	slog.Info("Starting daily reminder scan...")
	owners, err := t.store.ListOwners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	var notified, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for _, ownerID := range owners {
		g.Go(func() error {
			due, err := t.HasDueToday(gctx, ownerID)
			if err != nil {
				failed.Add(1)
				slog.Error("Failed to check due cards", "owner_id", ownerID, "error", err)
				return nil
			}
			if !due {
				skipped.Add(1)
				return nil
			}
			if err := t.notifier.Notify(gctx, ownerID); err != nil {
				failed.Add(1)
				slog.Warn("Failed to notify user", "owner_id", ownerID, "error", err)
				return nil
			}
			notified.Add(1)
			return nil
		})
	}
	// Every goroutine swallows its own failure; a non-nil error here
	// would mean a branch above started returning one.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reminder scan: %w", err)
	}

	slog.Info("reminder scan complete",
		"owners", len(owners),
		"notified", notified.Load(),
		"skipped", skipped.Load(),
		"failed", failed.Load(),
	)
	return nil
}

// StartDaily schedules Run on the given cron expression and returns the
// started scheduler; the caller stops it on shutdown.
func (t *Trigger) StartDaily(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := t.Run(ctx); err != nil {
			slog.Error("Reminder scan failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reminder %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
