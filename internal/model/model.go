package model

import (
	"time"

	"github.com/samber/mo"
)

// Kind selects the delivery discipline of a component.
type Kind int

const (
	KindEvent Kind = iota
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// Status mirrors the iCalendar STATUS property. Only StatusCompleted has
// behavioral meaning, and only for tasks.
type Status string

const (
	StatusNone        Status = ""
	StatusNeedsAction Status = "NEEDS-ACTION"
	StatusInProcess   Status = "IN-PROCESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
)

// Anchor is the nominal instant of a component (event start or task due)
// as written in the source, before normalization.
type Anchor struct {
	// Value carries the wall-clock fields. Its Location is meaningful only
	// when neither DateOnly nor Floating is set.
	Value time.Time

	// DateOnly marks a bare calendar date (VALUE=DATE).
	DateOnly bool

	// Floating marks a date-time without zone information; it is read in
	// the configured local zone.
	Floating bool
}

// AlarmDefinition is a declarative trigger relative to an occurrence.
type AlarmDefinition struct {
	Offset      time.Duration
	Description string
}

// Component is a parsed calendar component (VEVENT or VTODO) as handed to
// the collection by a loader.
type Component struct {
	UID      string
	Kind     Kind
	Summary  string
	Class    string
	Status   Status
	Sequence int

	// Anchor is absent for a task without DUE.
	Anchor mo.Option[Anchor]

	// RRule is the raw rule value without the "RRULE:" prefix.
	RRule   string
	RDates  []Anchor
	ExDates []Anchor

	Alarms []AlarmDefinition
}

// Recurring reports whether the component carries a recurrence rule or
// additional dates.
func (c *Component) Recurring() bool {
	return c.RRule != "" || len(c.RDates) > 0
}

// OffsetBounds returns the smallest and largest alarm offsets, counting the
// implicit primary alarm at offset zero.
func (c *Component) OffsetBounds() (lo, hi time.Duration) {
	for _, def := range c.Alarms {
		if def.Offset < lo {
			lo = def.Offset
		}
		if def.Offset > hi {
			hi = def.Offset
		}
	}
	return lo, hi
}

// Alarm is a concrete reminder. Date is the trigger time, DueDate the
// occurrence it refers to.
type Alarm struct {
	Event   string    `json:"event"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
	DueDate time.Time `json:"due_date"`
}

// Primary reports whether the alarm coincides with its occurrence.
func (a Alarm) Primary() bool {
	return a.Date.Equal(a.DueDate)
}
