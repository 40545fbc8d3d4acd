// Package cooldown tracks once-per-day actions against a calendar day in a
// fixed time zone.
package cooldown

import (
	"sync"
	"time"
)

// Kind names a once-per-day action.
type Kind string

const (
	DailyClaim Kind = "daily_claim"
	DailyRob   Kind = "daily_rob"
)

// Decision is the answer of TryConsume.
type Decision int

const (
	Allowed Decision = iota
	Denied
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Record is the state kept per user and kind.
type Record struct {
	LastClaimAt time.Time
	StreakCount int
}

type key struct {
	userID int64
	kind   Kind
}

// Tracker owns the cooldown records. It is safe for concurrent use, but a
// TryConsume followed by Record is not atomic: callers serialize per user.
type Tracker struct {
	loc     *time.Location
	records map[key]*Record
	mu      sync.RWMutex
}

// NewTracker creates a tracker whose days begin at midnight in loc.
func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		loc:     loc,
		records: make(map[key]*Record),
	}
}

// FixedZone returns a zone offset from UTC by the given number of hours.
func FixedZone(offsetHours int) *time.Location {
	return time.FixedZone("", offsetHours*60*60)
}

// Location returns the tracker's zone.
func (t *Tracker) Location() *time.Location {
	return t.loc
}

// SameDay reports whether a and b fall on the same calendar date in the tracker's zone.
func (t *Tracker) SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(t.loc).Date()
	by, bm, bd := b.In(t.loc).Date()
	return ay == by && am == bm && ad == bd
}

// TryConsume reports whether kind is still available to the user on now's date.
// It does not write anything.
func (t *Tracker) TryConsume(userID int64, kind Kind, now time.Time) Decision {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[key{userID, kind}]
	if ok && !rec.LastClaimAt.IsZero() && t.SameDay(rec.LastClaimAt, now) {
		return Denied
	}
	return Allowed
}

// Record stores now as the user's last use of kind.
func (t *Tracker) Record(userID int64, kind Kind, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(userID, kind).LastClaimAt = now.In(t.loc)
}

// LastClaim returns the last recorded use of kind, if any.
func (t *Tracker) LastClaim(userID int64, kind Kind) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[key{userID, kind}]
	if !ok || rec.LastClaimAt.IsZero() {
		return time.Time{}, false
	}
	return rec.LastClaimAt, true
}

// StreakCount returns the number of successful daily claims so far.
// The count never resets on a missed day.
func (t *Tracker) StreakCount(userID int64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.records[key{userID, DailyClaim}]; ok {
		return rec.StreakCount
	}
	return 0
}

// IncrementStreak adds one to the user's daily claim count and returns it.
func (t *Tracker) IncrementStreak(userID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.get(userID, DailyClaim)
	rec.StreakCount++
	return rec.StreakCount
}

// NextReset returns the next midnight after now in the tracker's zone.
func (t *Tracker) NextReset(now time.Time) time.Time {
	local := now.In(t.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.loc)
}

func (t *Tracker) get(userID int64, kind Kind) *Record {
	k := key{userID, kind}
	rec, ok := t.records[k]
	if !ok {
		rec = &Record{}
		t.records[k] = rec
	}
	return rec
}
