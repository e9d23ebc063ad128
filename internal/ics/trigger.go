package ics

import (
	"time"

	eical "github.com/emersion/go-ical"
)

// parseTrigger decodes a relative VALARM trigger such as "-PT30M" or
// "P1DT2H" using the RFC 5545 duration grammar.
func parseTrigger(value string) (time.Duration, error) {
	prop := eical.NewProp(eical.PropTrigger)
	prop.Value = value
	return prop.Duration()
}
