package cost

import (
	"sync"
	"time"
)

// Caps bounds spend over three rolling windows: per-run, per-hour, and
// per-day, denominated in currency rather than tool-call counts.
type Caps struct {
	MaxPerRun  float64 // zero means unlimited
	MaxPerHour float64
	MaxPerDay  float64
}

// LedgerDecision is returned by Ledger.Reserve.
type LedgerDecision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	spent float64
}

// Ledger tracks spend against Caps across overlapping rolling windows,
// guarded by a mutex for concurrent runs.
type Ledger struct {
	mu    sync.Mutex
	caps  Caps
	hour  window
	day   window
	runs  map[string]float64
	clock func() time.Time
}

// NewLedger constructs a Ledger enforcing caps.
func NewLedger(caps Caps) *Ledger {
	now := time.Now
	return &Ledger{
		caps:  caps,
		hour:  window{start: now()},
		day:   window{start: now()},
		runs:  make(map[string]float64),
		clock: now,
	}
}

// Reserve checks whether amount can be spent against runID without
// exceeding any configured cap, and if so records the spend immediately.
// Exceeding a cap returns Allowed=false; the hour and day caps also carry a
// RetryAfter hint for the window that would need to roll over, while the
// per-run cap carries none.
func (l *Ledger) Reserve(runID string, amount float64) LedgerDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.rollWindows(now)

	if l.caps.MaxPerRun > 0 && l.runs[runID]+amount > l.caps.MaxPerRun {
		return LedgerDecision{Reason: "per-run budget exceeded"}
	}
	if l.caps.MaxPerHour > 0 && l.hour.spent+amount > l.caps.MaxPerHour {
		return LedgerDecision{Reason: "per-hour budget exceeded", RetryAfter: time.Hour - now.Sub(l.hour.start)}
	}
	if l.caps.MaxPerDay > 0 && l.day.spent+amount > l.caps.MaxPerDay {
		return LedgerDecision{Reason: "per-day budget exceeded", RetryAfter: 24*time.Hour - now.Sub(l.day.start)}
	}

	l.runs[runID] += amount
	l.hour.spent += amount
	l.day.spent += amount
	return LedgerDecision{Allowed: true}
}

// Spent returns the total recorded against runID.
func (l *Ledger) Spent(runID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs[runID]
}

func (l *Ledger) rollWindows(now time.Time) {
	if now.Sub(l.hour.start) >= time.Hour {
		l.hour = window{start: now}
	}
	if now.Sub(l.day.start) >= 24*time.Hour {
		l.day = window{start: now}
	}
}
