// Package ink implements the per-user ink budget with lazy continuous
// refill. The stored balance is only ever valid together with its refill
// baseline timestamp; the effective balance at any instant is derived on
// demand, never by repeated incremental addition.
package ink

import (
	"errors"
	"time"

	"inkwash/pkg/clock"
	"inkwash/pkg/models"
	"inkwash/pkg/stroke"
)

// ErrQuotaExceeded is returned when a new stroke is refused at zero ink.
var ErrQuotaExceeded = errors.New("ink: quota exceeded")

// ErrMaintenance is returned while the maintenance flag disables new work.
var ErrMaintenance = errors.New("ink: maintenance mode")

// Ledger tracks one user's consumable ink. It is not goroutine safe; like
// the rest of the engine it is owned by the UI goroutine.
type Ledger struct {
	now  clock.Clock
	max  float64
	rate float64 // units per second

	unlimited   bool
	maintenance bool

	stored     float64
	lastRefill time.Time
	country    string
	createdAt  int64
	dirty      bool
}

// Options configures a Ledger.
type Options struct {
	MaxInk      float64
	RefillRate  float64 // units per second
	Unlimited   bool
	Maintenance bool
	Now         clock.Clock
}

// NewLedger builds a ledger over a loaded account snapshot. A zero-valued
// account (first session) starts full.
func NewLedger(acct models.InkAccount, opts Options) *Ledger {
	now := opts.Now
	if now == nil {
		now = clock.System
	}
	l := &Ledger{
		now:         now,
		max:         opts.MaxInk,
		rate:        opts.RefillRate,
		unlimited:   opts.Unlimited,
		maintenance: opts.Maintenance,
		stored:      acct.InkRemaining,
		country:     acct.Country,
		createdAt:   acct.CreatedAt,
	}
	if acct.CreatedAt == 0 {
		t := now()
		l.stored = opts.MaxInk
		l.lastRefill = t
		l.createdAt = clock.Millis(t)
	} else {
		l.lastRefill = time.UnixMilli(acct.LastRefill).UTC()
	}
	return l
}

// Effective returns the current balance: min(max, stored + rate*elapsed).
// Evaluating it twice at the same instant yields the same value.
func (l *Ledger) Effective() float64 {
	if l.unlimited {
		return l.max
	}
	return l.effectiveAt(l.now())
}

func (l *Ledger) effectiveAt(t time.Time) float64 {
	elapsed := t.Sub(l.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	eff := l.stored + l.rate*elapsed
	if eff > l.max {
		eff = l.max
	}
	return eff
}

// Authorize gates the start of a new stroke. Only the start is gated: a
// stroke already in progress may keep consuming past zero. Eraser strokes
// always pass at zero cost.
func (l *Ledger) Authorize(kind stroke.Kind) error {
	if l.maintenance {
		return ErrMaintenance
	}
	if kind == stroke.Eraser {
		return nil
	}
	if l.unlimited {
		return nil
	}
	if l.Effective() <= 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// Consume debits ink immediately for optimistic UI feedback. The accrued
// refill is folded into the stored balance first so the baseline stays
// consistent. The balance floors at zero.
func (l *Ledger) Consume(amount float64) {
	if l.unlimited || amount <= 0 {
		return
	}
	t := l.now()
	l.stored = l.effectiveAt(t) - amount
	if l.stored < 0 {
		l.stored = 0
	}
	l.lastRefill = t
	l.dirty = true
}

// Refund adds ink back (undo), clamped to the maximum.
func (l *Ledger) Refund(amount float64) {
	if l.unlimited || amount <= 0 {
		return
	}
	t := l.now()
	l.stored = l.effectiveAt(t) + amount
	if l.stored > l.max {
		l.stored = l.max
	}
	l.lastRefill = t
	l.dirty = true
}

// Dirty reports whether the balance changed since the last Commit.
func (l *Ledger) Dirty() bool { return l.dirty }

// Commit folds the refill accrued so far into the stored balance, resets
// the baseline to now so elapsed time is not double counted after a write,
// and returns the snapshot to persist.
func (l *Ledger) Commit() models.InkAccount {
	t := l.now()
	l.stored = l.effectiveAt(t)
	l.lastRefill = t
	l.dirty = false
	return models.InkAccount{
		InkRemaining: l.stored,
		LastRefill:   clock.Millis(t),
		Country:      l.country,
		CreatedAt:    l.createdAt,
	}
}
