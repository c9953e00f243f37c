package views

import (
	"fmt"
	"sync"
	"time"

	"survey-bknd/internal/models"
	"survey-bknd/internal/rollup"
)

// RetryTotals selects the grand totals slot in RollupView.Retry.
const RetryTotals = "totals"

// RollupView is one session of the finance summary screen.
type RollupView struct {
	ID string

	engine    *rollup.Engine
	reference func() models.Month

	mu       sync.Mutex
	lastSeen time.Time
}

type RollupSnapshot struct {
	ID string `json:"id"`
	rollup.Snapshot
}

// SetScope moves the view to scope. A scope without a period uses the reference month.
func (v *RollupView) SetScope(scope models.FinanceScope) {
	if scope.Period.IsZero() && v.reference != nil {
		scope.Period = v.reference()
	}
	v.engine.SetScope(scope)
}

// Retry reloads one dimension, or the grand totals for RetryTotals.
func (v *RollupView) Retry(target string) error {
	if target == RetryTotals {
		v.engine.RetryTotals()
		return nil
	}
	dim, err := models.ParseDimension(target)
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return v.engine.RetryDimension(dim)
}

func (v *RollupView) Snapshot() RollupSnapshot {
	return RollupSnapshot{ID: v.ID, Snapshot: v.engine.Snapshot()}
}

func (v *RollupView) Close() {
	v.engine.Close()
}

func (v *RollupView) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *RollupView) idleSince(cutoff time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen.Before(cutoff)
}
