// Package events owns component registration and answers the two alarm
// queries: range queries for display and due-alarm polling for delivery.
package events

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/mo"

	"remhind/internal/alarm"
	appLog "remhind/internal/log"
	"remhind/internal/model"
	"remhind/internal/recurrence"
)

// DefaultMaxBacklog is how many pending occurrences a task reports at most.
const DefaultMaxBacklog = 100

// ErrMissingUID is returned by Add for components without a UID.
var ErrMissingUID = errors.New("events: component has no UID")

// Options configures a Collection. The zero value is usable.
type Options struct {
	// Location is the zone for floating times and date-only anchors.
	Location *time.Location

	// AllDayHour is the wall-clock hour of date-only anchors (default 12).
	AllDayHour int

	// MaxSteps caps recurrence expansion per series and query.
	MaxSteps int

	// MaxBacklog caps the pending alarms reported per task series; the
	// most recent ones are kept.
	MaxBacklog int

	// BacklogLookback moves the start of recurring-task backlog accounting
	// before the series' first registration.
	BacklogLookback time.Duration

	// Clock stamps registrations. Defaults to time.Now.
	Clock func() time.Time
}

// Collection is the in-memory registry of calendar components. All
// methods are safe for concurrent use.
type Collection struct {
	mu sync.Mutex

	opts       Options
	norm       recurrence.Normalizer
	index      *alarm.Index
	tracker    *Tracker
	watermarks map[string]time.Time
	sources    map[string]string
}

func NewCollection(opts Options) *Collection {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxBacklog <= 0 {
		opts.MaxBacklog = DefaultMaxBacklog
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Collection{
		opts:       opts,
		norm:       recurrence.Normalizer{Local: opts.Location, AllDayHour: opts.AllDayHour},
		index:      alarm.NewIndex(opts.MaxSteps),
		tracker:    NewTracker(),
		watermarks: make(map[string]time.Time),
		sources:    make(map[string]string),
	}
}

// Add registers comp, replacing any earlier definition with the same UID
// while keeping that series' completion bookkeeping and delivery
// watermark. source is opaque and only kept for Source lookups.
//
// A component without anchor is accepted and never alarms. A malformed
// recurrence rule is rejected with ErrInvalidRecurrence and the UID is
// excluded from expansion until a valid definition is added.
func (c *Collection) Add(comp model.Component, source string) error {
	if comp.UID == "" {
		return ErrMissingUID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.index.Get(comp.UID); ok && prev.Component.Kind != comp.Kind {
		delete(c.watermarks, comp.UID)
	}
	c.tracker.Register(&comp, c.opts.Clock())
	c.sources[comp.UID] = source

	start, err := c.norm.Normalize(comp.Anchor)
	if err != nil {
		appLog.Debug("events: component has no anchor", "uid", comp.UID, "kind", comp.Kind)
		c.index.Put(&alarm.Entry{Component: comp})
		return nil
	}

	series, err := recurrence.NewSeries(recurrence.Spec{
		Start:   start,
		Rule:    comp.RRule,
		RDates:  c.norm.Instants(comp.RDates),
		ExDates: c.norm.Instants(comp.ExDates),
		AllDay:  comp.Anchor.MustGet().DateOnly,
	})
	if err != nil {
		c.index.Remove(comp.UID)
		appLog.Error("events: rejecting recurrence", err, "uid", comp.UID, "source", source)
		return fmt.Errorf("events: register %s: %w", comp.UID, err)
	}

	c.index.Put(&alarm.Entry{Component: comp, Series: series})
	return nil
}

// Len is the number of registered series.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// Source returns the source tag the UID was last registered with.
func (c *Collection) Source(uid string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[uid]
	return src, ok
}

// GetAlarms returns every alarm triggering in [start, end), ordered by
// (date, due date). It does not change any state.
func (c *Collection) GetAlarms(start, end time.Time) []model.Alarm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Alarms(start, end)
}

// AlarmsAt returns the alarms triggering exactly at t.
func (c *Collection) AlarmsAt(t time.Time) []model.Alarm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.At(t)
}

// Watermark is the trigger time of the last alarm delivered for an event
// series, if any.
func (c *Collection) Watermark(uid string) mo.Option[time.Time] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wm, ok := c.watermarks[uid]; ok {
		return mo.Some(wm)
	}
	return mo.None[time.Time]()
}

// MarkDeliveredThrough treats every event alarm up to t as already
// delivered, for series whose watermark is earlier or unset. A process
// that starts without delivery history uses it so that only alarms after t
// are reported. Tasks are unaffected.
func (c *Collection) MarkDeliveredThrough(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uid := range c.index.UIDs() {
		e, _ := c.index.Get(uid)
		if e.Component.Kind != model.KindEvent {
			continue
		}
		if wm, ok := c.watermarks[uid]; ok && !wm.Before(t) {
			continue
		}
		c.watermarks[uid] = t
	}
}

// GetDueAlarms returns the alarms to deliver at now, series by series in
// UID order. Events deliver at most their latest undelivered alarm; tasks
// repeat their whole outstanding backlog on every call. Callers must pass
// a non-decreasing now.
func (c *Collection) GetDueAlarms(now time.Time) []model.Alarm {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []model.Alarm
	for _, uid := range c.index.UIDs() {
		e, _ := c.index.Get(uid)
		if e.Series == nil {
			continue
		}
		switch e.Component.Kind {
		case model.KindEvent:
			if a, ok := c.dueEvent(e, now); ok {
				out = append(out, a)
			}
		case model.KindTask:
			out = append(out, c.dueTask(e, now)...)
		}
	}
	return out
}
