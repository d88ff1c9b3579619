// Package quota enforces the per-user limit on AI escalations.
//
// Counts are cumulative for the lifetime of the quota file; nothing resets
// them automatically. The "quota reset" CLI command clears them by hand.
package quota

import (
	"fmt"
	"strconv"
	"sync"

	"ocrbot/internal/store"
	"ocrbot/pkg/models"
)

// DefaultLimit is the number of AI escalations a non-administrator may use.
const DefaultLimit = 5

// Remaining is the number of escalations a user has left.
type Remaining struct {
	Count     int
	Unlimited bool
}

// Exhausted reports whether no escalation is left.
func (r Remaining) Exhausted() bool {
	return !r.Unlimited && r.Count <= 0
}

// String renders the count, or "∞" for administrators.
func (r Remaining) String() string {
	if r.Unlimited {
		return "∞"
	}
	return strconv.Itoa(r.Count)
}

// Tracker reads and consumes AI quota. Administrators bypass it entirely.
type Tracker struct {
	counts *store.Counters
	limit  int
	admins models.AdminSet

	mu      sync.Mutex
	pending map[int64]int // reserved units not yet committed
}

// NewTracker wraps the persisted use counts keyed by user id.
func NewTracker(counts *store.Counters, limit int, admins models.AdminSet) *Tracker {
	return &Tracker{
		counts:  counts,
		limit:   limit,
		admins:  admins,
		pending: make(map[int64]int),
	}
}

// IsAdmin reports whether the user is exempt from the quota.
func (t *Tracker) IsAdmin(userID int64) bool {
	return t.admins.Contains(userID)
}

// Remaining returns max(0, limit - used), or unlimited for administrators.
func (t *Tracker) Remaining(userID int64) Remaining {
	if t.IsAdmin(userID) {
		return Remaining{Unlimited: true}
	}
	left := t.limit - t.counts.Get(key(userID))
	if left < 0 {
		left = 0
	}
	return Remaining{Count: left}
}

// Used returns the recorded use count.
func (t *Tracker) Used(userID int64) int {
	return t.counts.Get(key(userID))
}

// Consume records one escalation for a non-administrator and returns what is
// left afterwards. The in-memory count advances even when persisting fails.
func (t *Tracker) Consume(userID int64) (Remaining, error) {
	if t.IsAdmin(userID) {
		return Remaining{Unlimited: true}, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumeLocked(userID)
}

func (t *Tracker) consumeLocked(userID int64) (Remaining, error) {
	_, err := t.counts.Increment(key(userID))
	if err != nil {
		err = fmt.Errorf("consume quota: %w", err)
	}
	return t.Remaining(userID), err
}

// Reservation holds one unit of a user's quota while an escalation runs.
// Exactly one of Commit or Release takes effect; later calls are no-ops.
type Reservation struct {
	t      *Tracker
	userID int64
	done   bool
}

// Reserve sets aside one unit for userID. It reports false when the user's
// committed and reserved units already reach the limit. Administrators always
// get a reservation.
func (t *Tracker) Reserve(userID int64) (*Reservation, bool) {
	r := &Reservation{t: t, userID: userID}
	if t.IsAdmin(userID) {
		return r, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts.Get(key(userID))+t.pending[userID] >= t.limit {
		return nil, false
	}
	t.pending[userID]++
	return r, true
}

// Commit turns the reservation into a consumed unit and returns what is left.
func (r *Reservation) Commit() (Remaining, error) {
	t := r.t
	if t.IsAdmin(r.userID) {
		r.done = true
		return Remaining{Unlimited: true}, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.done {
		return t.Remaining(r.userID), nil
	}
	r.done = true
	t.unreserveLocked(r.userID)
	return t.consumeLocked(r.userID)
}

// Release gives the unit back unless it was committed.
func (r *Reservation) Release() {
	t := r.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	if !t.IsAdmin(r.userID) {
		t.unreserveLocked(r.userID)
	}
}

func (t *Tracker) unreserveLocked(userID int64) {
	if t.pending[userID] <= 1 {
		delete(t.pending, userID)
		return
	}
	t.pending[userID]--
}

// Reset clears the user's count.
func (t *Tracker) Reset(userID int64) error {
	return t.counts.Reset(key(userID))
}

// ResetAll clears every user's count.
func (t *Tracker) ResetAll() error {
	return t.counts.ResetAll()
}

// Usage returns every recorded count keyed by user id.
func (t *Tracker) Usage() map[string]int {
	return t.counts.Snapshot()
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
