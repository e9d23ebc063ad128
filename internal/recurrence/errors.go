package recurrence

import "errors"

var (
	// ErrAnchorMissing is returned for components without a start or due
	// value. It is a valid state for tasks; such components never alarm.
	ErrAnchorMissing = errors.New("recurrence: anchor missing")

	// ErrInvalidRecurrence wraps RRULE parse failures.
	ErrInvalidRecurrence = errors.New("recurrence: invalid rule")

	// ErrUnboundedExpansion is returned when a rule without COUNT or UNTIL
	// is asked to materialize every occurrence.
	ErrUnboundedExpansion = errors.New("recurrence: unbounded expansion requested")

	// ErrExpansionLimit is returned when a bounded set has more occurrences
	// than a full materialization may visit.
	ErrExpansionLimit = errors.New("recurrence: expansion limit reached")
)
