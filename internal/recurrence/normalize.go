package recurrence

import (
	"time"

	"github.com/samber/mo"

	"remhind/internal/model"
)

// DefaultAllDayHour is the wall-clock hour given to date-only anchors so
// that all-day items do not alarm at midnight.
const DefaultAllDayHour = 12

// Normalizer resolves anchors into absolute instants. The returned times
// keep the wall-clock zone they were written in, so that recurrence
// expansion follows that zone's DST transitions.
type Normalizer struct {
	// Local is the zone for floating times and date-only anchors.
	// If nil, time.Local is used.
	Local *time.Location

	// AllDayHour is the hour assigned to date-only anchors.
	// Zero means DefaultAllDayHour; midnight cannot be configured.
	AllDayHour int
}

func (n Normalizer) location() *time.Location {
	if n.Local == nil {
		return time.Local
	}
	return n.Local
}

func (n Normalizer) allDayHour() int {
	if n.AllDayHour <= 0 || n.AllDayHour > 23 {
		return DefaultAllDayHour
	}
	return n.AllDayHour
}

// Normalize returns the instant of an optional anchor, or ErrAnchorMissing.
func (n Normalizer) Normalize(a mo.Option[model.Anchor]) (time.Time, error) {
	anchor, ok := a.Get()
	if !ok {
		return time.Time{}, ErrAnchorMissing
	}
	return n.Instant(anchor), nil
}

// Instant converts a single anchor value.
func (n Normalizer) Instant(a model.Anchor) time.Time {
	v := a.Value
	switch {
	case a.DateOnly:
		return time.Date(v.Year(), v.Month(), v.Day(), n.allDayHour(), 0, 0, 0, n.location())
	case a.Floating:
		return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), n.location())
	default:
		return v
	}
}

// Instants converts a list of anchors, e.g. RDATE or EXDATE values.
func (n Normalizer) Instants(as []model.Anchor) []time.Time {
	if len(as) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(as))
	for _, a := range as {
		out = append(out, n.Instant(a))
	}
	return out
}
