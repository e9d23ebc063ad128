package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultMaxSteps caps how many occurrences a single walk may visit.
const DefaultMaxSteps = 100000

// Spec describes one recurrence set: an RRULE anchored at Start, plus
// RDATE and EXDATE instants. All times are already normalized.
type Spec struct {
	Start   time.Time
	Rule    string
	RDates  []time.Time
	ExDates []time.Time

	// AllDay widens a date-only UNTIL to cover the whole final day.
	AllDay bool
}

// Next yields occurrences in ascending order until ok is false.
type Next func() (t time.Time, ok bool)

// Series is the occurrence set (RRULE ∪ RDATE) \ EXDATE of one component.
// It is immutable; each Iterator call restarts from the first occurrence.
type Series struct {
	start   time.Time
	rule    *rrule.RRule
	bounded bool
	rdates  []time.Time
	exdates []time.Time
}

// NewSeries validates the rule and prepares the set. Without a rule the
// set is {Start} ∪ RDATE \ EXDATE.
func NewSeries(spec Spec) (*Series, error) {
	s := &Series{
		start:   spec.Start,
		bounded: true,
		rdates:  sortedCopy(spec.RDates),
		exdates: sortedCopy(spec.ExDates),
	}

	raw := strings.TrimSpace(spec.Rule)
	raw = strings.TrimPrefix(raw, "RRULE:")
	if raw == "" {
		s.rdates = sortedCopy(append(s.rdates, spec.Start))
		return s, nil
	}

	opt, err := rrule.StrToROptionInLocation(raw, spec.Start.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRecurrence, raw, err)
	}
	if spec.AllDay && !opt.Until.IsZero() {
		u := opt.Until.In(spec.Start.Location())
		if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 {
			opt.Until = time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, u.Location())
		}
	}
	opt.Dtstart = spec.Start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRecurrence, raw, err)
	}
	s.rule = r
	s.bounded = opt.Count > 0 || !opt.Until.IsZero()
	return s, nil
}

// Start is the series' first candidate instant.
func (s *Series) Start() time.Time { return s.start }

// Bounded reports whether the set is finite.
func (s *Series) Bounded() bool { return s.bounded }

// Iterator merges rule output with RDATEs, dropping duplicates and any
// instant equal to an EXDATE.
func (s *Series) Iterator() Next {
	var ruleNext func() (time.Time, bool)
	if s.rule != nil {
		ruleNext = s.rule.Iterator()
	}

	var (
		pending     time.Time
		havePending bool
		rd, ex      int
		last        time.Time
		emitted     bool
	)
	pull := func() {
		if ruleNext == nil {
			havePending = false
			return
		}
		pending, havePending = ruleNext()
	}
	pull()

	return func() (time.Time, bool) {
		for {
			var t time.Time
			switch {
			case havePending && (rd >= len(s.rdates) || !s.rdates[rd].Before(pending)):
				t = pending
				pull()
			case rd < len(s.rdates):
				t = s.rdates[rd]
				rd++
			default:
				return time.Time{}, false
			}

			if emitted && !t.After(last) {
				continue
			}
			for ex < len(s.exdates) && s.exdates[ex].Before(t) {
				ex++
			}
			if ex < len(s.exdates) && s.exdates[ex].Equal(t) {
				continue
			}
			last, emitted = t, true
			return t, true
		}
	}
}

// First returns the earliest occurrence, if the set is not empty.
func (s *Series) First() (time.Time, bool) {
	return s.Iterator()()
}

// Walk feeds occurrences at or after from to fn until fn returns false or
// the set ends. Earlier occurrences are skipped and do not count toward
// maxSteps. It reports true if it stopped because maxSteps occurrences
// were visited. A non-positive maxSteps means DefaultMaxSteps.
func (s *Series) Walk(from time.Time, maxSteps int, fn func(time.Time) bool) (truncated bool) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	next := s.Iterator()
	steps := 0
	for {
		t, ok := next()
		if !ok {
			return false
		}
		if t.Before(from) {
			continue
		}
		if steps >= maxSteps {
			return true
		}
		steps++
		if !fn(t) {
			return false
		}
	}
}

// Between returns occurrences in the half-open window [from, to).
func (s *Series) Between(from, to time.Time, maxSteps int) ([]time.Time, bool) {
	var out []time.Time
	truncated := s.Walk(from, maxSteps, func(t time.Time) bool {
		if !t.Before(to) {
			return false
		}
		out = append(out, t)
		return true
	})
	return out, truncated
}

// All materializes a bounded set. Unbounded rules fail with
// ErrUnboundedExpansion instead of running forever, and sets larger than
// DefaultMaxSteps fail with ErrExpansionLimit.
func (s *Series) All() ([]time.Time, error) {
	return s.all(DefaultMaxSteps)
}

func (s *Series) all(maxSteps int) ([]time.Time, error) {
	if !s.bounded {
		return nil, ErrUnboundedExpansion
	}
	var out []time.Time
	truncated := s.Walk(time.Time{}, maxSteps, func(t time.Time) bool {
		out = append(out, t)
		return true
	})
	if truncated {
		return nil, fmt.Errorf("%w: more than %d occurrences", ErrExpansionLimit, maxSteps)
	}
	return out, nil
}

func sortedCopy(ts []time.Time) []time.Time {
	if len(ts) == 0 {
		return nil
	}
	out := make([]time.Time, len(ts))
	copy(out, ts)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
