package alarm

import (
	"errors"
	"sort"
	"time"

	appLog "remhind/internal/log"
	"remhind/internal/model"
	"remhind/internal/recurrence"
)

// Entry is one registered series. Series is nil when the component has no
// anchor; such entries never produce alarms.
type Entry struct {
	Component model.Component
	Series    *recurrence.Series
}

// Alarms returns the series' alarms whose trigger time falls in the
// half-open window [start, end), ordered. A zero start means "from the
// first occurrence". The bool reports that the expansion cap was hit.
func (e *Entry) Alarms(start, end time.Time, maxSteps int) ([]model.Alarm, bool) {
	if e.Series == nil || !start.Before(end) {
		return nil, false
	}

	lo, hi := e.Component.OffsetBounds()

	// occurrence + offset ∈ [start, end)  =>  occurrence ∈ [start-hi, end-lo)
	from := time.Time{}
	if !start.IsZero() {
		from = start.Add(-hi)
	}
	occs, truncated := e.Series.Between(from, end.Add(-lo), maxSteps)

	out := make([]model.Alarm, 0, len(occs)*(1+len(e.Component.Alarms)))
	for _, occ := range occs {
		for _, a := range Materialize(&e.Component, occ) {
			if a.Date.Before(start) || !a.Date.Before(end) {
				continue
			}
			out = append(out, a)
		}
	}
	Sort(out)
	return out, truncated
}

// Index holds the registered series and answers range queries over them.
// It is not safe for concurrent use; the owning collection serializes access.
type Index struct {
	entries  map[string]*Entry
	maxSteps int
}

// NewIndex creates an empty index. maxSteps bounds the expansion of each
// series per query; non-positive means recurrence.DefaultMaxSteps.
func NewIndex(maxSteps int) *Index {
	if maxSteps <= 0 {
		maxSteps = recurrence.DefaultMaxSteps
	}
	return &Index{
		entries:  make(map[string]*Entry),
		maxSteps: maxSteps,
	}
}

// Put registers e, replacing any entry with the same UID.
func (ix *Index) Put(e *Entry) {
	ix.entries[e.Component.UID] = e
}

// Remove drops the entry for uid, if any.
func (ix *Index) Remove(uid string) {
	delete(ix.entries, uid)
}

func (ix *Index) Get(uid string) (*Entry, bool) {
	e, ok := ix.entries[uid]
	return e, ok
}

func (ix *Index) Len() int { return len(ix.entries) }

// MaxSteps is the per-series expansion cap.
func (ix *Index) MaxSteps() int { return ix.maxSteps }

// UIDs returns registered UIDs in ascending order.
func (ix *Index) UIDs() []string {
	uids := make([]string, 0, len(ix.entries))
	for uid := range ix.entries {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// Alarms returns every alarm with trigger time in [start, end), ordered by
// (date, due date).
func (ix *Index) Alarms(start, end time.Time) []model.Alarm {
	var out []model.Alarm
	for _, uid := range ix.UIDs() {
		e := ix.entries[uid]
		alarms, truncated := e.Alarms(start, end, ix.maxSteps)
		if truncated {
			appLog.Warn("alarm index: expansion cap reached", "uid", uid, "cap", ix.maxSteps)
		}
		out = append(out, alarms...)
	}
	Sort(out)
	return out
}

// At returns the alarms triggering exactly at t.
func (ix *Index) At(t time.Time) []model.Alarm {
	return ix.Alarms(t, t.Add(time.Nanosecond))
}

// ErrUnknownSeries is returned by lookups for unregistered UIDs.
var ErrUnknownSeries = errors.New("alarm: unknown series")

// Occurrences materializes a bounded series completely.
func (ix *Index) Occurrences(uid string) ([]time.Time, error) {
	e, ok := ix.entries[uid]
	if !ok {
		return nil, ErrUnknownSeries
	}
	if e.Series == nil {
		return nil, recurrence.ErrAnchorMissing
	}
	return e.Series.All()
}
