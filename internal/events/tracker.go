package events

import (
	"time"

	"remhind/internal/model"
)

// seriesState is the completion bookkeeping of one UID. It survives
// re-registration of the UID.
type seriesState struct {
	baseline     int
	latest       int
	completed    bool
	registeredAt time.Time
}

// Tracker counts completed occurrences per series from the revision
// (SEQUENCE) delta between the first and the latest registration.
type Tracker struct {
	series map[string]*seriesState
}

func NewTracker() *Tracker {
	return &Tracker{series: make(map[string]*seriesState)}
}

// Register records a registration of c at time now. The baseline and
// registration time are captured only the first time a UID is seen.
func (t *Tracker) Register(c *model.Component, now time.Time) {
	st, ok := t.series[c.UID]
	if !ok {
		st = &seriesState{baseline: c.Sequence, registeredAt: now}
		t.series[c.UID] = st
	}
	st.latest = c.Sequence
	st.completed = c.Kind == model.KindTask && c.Status == model.StatusCompleted
}

// CompletedCount is how many leading occurrences of the series are done.
func (t *Tracker) CompletedCount(uid string) int {
	st, ok := t.series[uid]
	if !ok {
		return 0
	}
	return max(0, st.latest-st.baseline)
}

// Completed reports whether the latest registration marked the task done.
func (t *Tracker) Completed(uid string) bool {
	st, ok := t.series[uid]
	return ok && st.completed
}

// RegisteredAt is the time the UID was first registered.
func (t *Tracker) RegisteredAt(uid string) (time.Time, bool) {
	st, ok := t.series[uid]
	if !ok {
		return time.Time{}, false
	}
	return st.registeredAt, true
}
