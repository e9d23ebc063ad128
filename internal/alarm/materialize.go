package alarm

import (
	"sort"
	"time"

	"remhind/internal/model"
)

// Primary is the implicit alarm coincident with an occurrence.
func Primary(c *model.Component, occurrence time.Time) model.Alarm {
	return model.Alarm{
		Event:   c.UID,
		Message: c.Summary,
		Date:    occurrence,
		DueDate: occurrence,
	}
}

// Materialize emits the primary alarm of one occurrence followed by one
// alarm per definition, in declaration order.
func Materialize(c *model.Component, occurrence time.Time) []model.Alarm {
	out := make([]model.Alarm, 0, 1+len(c.Alarms))
	out = append(out, Primary(c, occurrence))
	for _, def := range c.Alarms {
		out = append(out, model.Alarm{
			Event:   c.UID,
			Message: def.Description,
			Date:    occurrence.Add(def.Offset),
			DueDate: occurrence,
		})
	}
	return out
}

// Less orders alarms by trigger time, then occurrence, then series.
func Less(a, b model.Alarm) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.Event < b.Event
}

// Sort orders alarms in place. It is stable, so a primary alarm stays ahead
// of a zero-offset definition of the same occurrence.
func Sort(alarms []model.Alarm) {
	sort.SliceStable(alarms, func(i, j int) bool { return Less(alarms[i], alarms[j]) })
}
