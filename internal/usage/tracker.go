// Package usage enforces per-user daily quotas on costly operations.
package usage

import (
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts time for testing day-boundary behavior.
type Clock func() time.Time

// Tracker counts costly operations per user per calendar day against a
// configurable maximum. Entries are keyed by (user, day), so the counter
// resets implicitly at the start of each day.
//
// The check-and-increment in TryAcquire is atomic under one mutex:
// concurrent pipeline runs for the same user cannot jointly exceed the
// daily cap. This holds within a single process only; a multi-instance
// deployment would need a shared store behind the same interface.
type Tracker struct {
	now       Clock
	counts    map[string]int
	stopCh    chan struct{}
	maxPerDay int
	mu        sync.Mutex
}

// NewTracker creates a tracker allowing maxPerDay operations per user per
// calendar day. A cleanup goroutine drops past-day entries.
func NewTracker(maxPerDay int) *Tracker {
	return newTrackerWithClock(maxPerDay, time.Now)
}

func newTrackerWithClock(maxPerDay int, now Clock) *Tracker {
	if maxPerDay < 0 {
		maxPerDay = 0
	}

	t := &Tracker{
		now:       now,
		counts:    make(map[string]int),
		stopCh:    make(chan struct{}),
		maxPerDay: maxPerDay,
	}

	go t.cleanup()

	return t
}

// key builds the (user, calendar day) cache key.
func (t *Tracker) key(userID string) string {
	return userID + ":" + t.now().Format("2006-01-02")
}

// CanUse reports whether the user has quota left today without consuming any.
func (t *Tracker) CanUse(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[t.key(userID)] < t.maxPerDay
}

// TryAcquire atomically checks and consumes one unit of today's quota.
// It returns false, consuming nothing, when the quota is exhausted.
func (t *Tracker) TryAcquire(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.key(userID)
	if t.counts[key] >= t.maxPerDay {
		return false
	}

	t.counts[key]++
	return true
}

// RecordUsage notes a completed operation for audit logging. Quota was
// already consumed by TryAcquire.
func (t *Tracker) RecordUsage(userID, operation string) {
	t.mu.Lock()
	used := t.counts[t.key(userID)]
	t.mu.Unlock()

	slog.Info("Recorded costly operation",
		"user_id", userID,
		"operation", operation,
		"used_today", used,
		"max_per_day", t.maxPerDay)
}

// Remaining returns the user's remaining quota for today.
func (t *Tracker) Remaining(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.maxPerDay - t.counts[t.key(userID)]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup periodically drops entries from past days.
func (t *Tracker) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			today := ":" + t.now().Format("2006-01-02")
			t.mu.Lock()
			for key := range t.counts {
				if len(key) < len(today) || key[len(key)-len(today):] != today {
					delete(t.counts, key)
				}
			}
			t.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (t *Tracker) Close() {
	close(t.stopCh)
}
