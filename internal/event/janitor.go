package event

import (
	"context"
	"log"
	"time"
)

// SweepLog deletes old event log entries for the given quiz codes.
type SweepLog interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time, quizCodes []string) (int64, error)
}

// FinishedIndex lists quiz codes whose session finished before a cutoff.
type FinishedIndex interface {
	FinishedCodesBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Janitor trims event log entries of finished quizzes so the log does
// not accumulate forever. A quiz that is still running keeps its full
// backlog regardless of age. Runs until its context is cancelled.
type Janitor struct {
	events    SweepLog
	sessions  FinishedIndex
	retention time.Duration
	interval  time.Duration
}

func NewJanitor(events SweepLog, sessions FinishedIndex, retention, interval time.Duration) *Janitor {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{events: events, sessions: sessions, retention: retention, interval: interval}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)
	codes, err := j.sessions.FinishedCodesBefore(ctx, cutoff)
	if err != nil {
		log.Printf("[JANITOR] finished-quiz lookup failed: %v", err)
		return
	}
	deleted, err := j.events.DeleteFinishedBefore(ctx, cutoff, codes)
	if err != nil {
		log.Printf("[JANITOR] event trim failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("[JANITOR] trimmed %d events from %d finished quizzes", deleted, len(codes))
	}
}
