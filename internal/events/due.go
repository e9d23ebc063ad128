package events

import (
	"time"

	"remhind/internal/alarm"
	appLog "remhind/internal/log"
	"remhind/internal/model"
)

// firstSearchSpan is the width of the first window dueEvent looks back
// over; each empty window doubles it.
const firstSearchSpan = time.Hour

// dueEvent picks the latest alarm in (watermark, now] and advances the
// watermark to it. Older undelivered alarms are dropped.
//
// The search looks back from now over doubling windows so that a long
// history before the watermark never counts toward the expansion cap. A
// window that hits the cap delivers nothing: its last alarm is not known
// to be the latest one.
func (c *Collection) dueEvent(e *alarm.Entry, now time.Time) (model.Alarm, bool) {
	uid := e.Component.UID

	var lower time.Time
	if wm, ok := c.watermarks[uid]; ok {
		lower = wm.Add(time.Nanosecond)
	} else {
		first, ok := e.Series.First()
		if !ok {
			return model.Alarm{}, false
		}
		lo, _ := e.Component.OffsetBounds()
		lower = first.Add(lo)
	}
	if lower.After(now) {
		return model.Alarm{}, false
	}

	end := now.Add(time.Nanosecond)
	for span := firstSearchSpan; ; span *= 2 {
		start := now.Add(-span)
		last := !start.After(lower) || span > maxSearchSpan
		if last {
			start = lower
		}

		alarms, truncated := e.Alarms(start, end, c.index.MaxSteps())
		if truncated {
			appLog.Warn("events: expansion cap reached while looking for due alarm", "uid", uid, "cap", c.index.MaxSteps(), "window", now.Sub(start).String())
			return model.Alarm{}, false
		}
		if len(alarms) > 0 {
			latest := alarms[len(alarms)-1]
			c.watermarks[uid] = latest.Date
			return latest, true
		}
		if last {
			return model.Alarm{}, false
		}
	}
}

// maxSearchSpan keeps span doubling clear of time.Duration overflow.
const maxSearchSpan = time.Duration(1) << 61

// dueTask returns the primary alarm of every elapsed occurrence that is
// not yet accounted for by completions. Completions retire the earliest
// occurrences first.
func (c *Collection) dueTask(e *alarm.Entry, now time.Time) []model.Alarm {
	uid := e.Component.UID
	if c.tracker.Completed(uid) {
		return nil
	}

	var floor time.Time
	if e.Component.Recurring() {
		if reg, ok := c.tracker.RegisteredAt(uid); ok {
			floor = reg.Add(-c.opts.BacklogLookback)
		}
	}

	skip := c.tracker.CompletedCount(uid)
	limit := c.opts.MaxBacklog

	var pending []model.Alarm
	truncated := e.Series.Walk(floor, c.index.MaxSteps(), func(t time.Time) bool {
		if t.After(now) {
			return false
		}
		if skip > 0 {
			skip--
			return true
		}
		pending = append(pending, alarm.Primary(&e.Component, t))
		if len(pending) >= 2*limit {
			pending = append(pending[:0], pending[len(pending)-limit:]...)
		}
		return true
	})
	if truncated {
		// The walk never reached now, so pending holds stale occurrences.
		appLog.Warn("events: expansion cap reached while computing backlog", "uid", uid, "cap", c.index.MaxSteps())
		return nil
	}

	if len(pending) > limit {
		pending = pending[len(pending)-limit:]
	}
	return pending
}
