package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	appLog "remhind/internal/log"
	"remhind/internal/model"
)

// Properties without a stable named constant across golang-ical releases.
const (
	propDue     ical.ComponentProperty = "DUE"
	propRdate   ical.ComponentProperty = "RDATE"
	propStatus  ical.ComponentProperty = "STATUS"
	propClass   ical.ComponentProperty = "CLASS"
	propTrigger ical.ComponentProperty = "TRIGGER"
)

const (
	layoutDate     = "20060102"
	layoutDateTime = "20060102T150405"
	layoutUTC      = "20060102T150405Z"
)

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

// Parse decodes one ICS payload into components, VEVENTs first, then
// VTODOs. A malformed component is logged and skipped; only a payload that
// cannot be read at all is an error. source is used for logging only.
func Parse(source string, body []byte) ([]model.Component, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", source, err)
	}

	out := make([]model.Component, 0)
	for _, ev := range cal.Events() {
		c, perr := parseComponent(model.KindEvent, &ev.ComponentBase)
		if perr != nil {
			appLog.Error("ics: skipping vevent", perr, "source", source)
			continue
		}
		out = append(out, c)
	}
	for _, todo := range cal.Todos() {
		c, perr := parseComponent(model.KindTask, &todo.ComponentBase)
		if perr != nil {
			appLog.Error("ics: skipping vtodo", perr, "source", source)
			continue
		}
		out = append(out, c)
	}

	appLog.Debug("ics: parsed", "source", source, "components", len(out))
	return out, nil
}

func parseComponent(kind model.Kind, cb *ical.ComponentBase) (model.Component, error) {
	out := model.Component{Kind: kind}

	uidProp := cb.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.UID = strings.TrimSpace(uidProp.Value)

	if p := cb.GetProperty(ical.ComponentPropertySequence); p != nil {
		n, err := strconv.Atoi(strings.TrimSpace(p.Value))
		if err != nil {
			return out, fmt.Errorf("%s: bad SEQUENCE %q", out.UID, p.Value)
		}
		out.Sequence = n
	}
	if p := cb.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = textUnescaper.Replace(p.Value)
	}
	if p := cb.GetProperty(propClass); p != nil {
		out.Class = strings.ToUpper(strings.TrimSpace(p.Value))
	}
	if p := cb.GetProperty(propStatus); p != nil {
		out.Status = model.Status(strings.ToUpper(strings.TrimSpace(p.Value)))
	}

	anchorProp := ical.ComponentPropertyDtStart
	if kind == model.KindTask {
		anchorProp = propDue
	}
	out.Anchor = mo.None[model.Anchor]()
	if p := cb.GetProperty(anchorProp); p != nil {
		values, err := parseDateValues(p)
		if err != nil || len(values) != 1 {
			return out, fmt.Errorf("%s: bad %s %q", out.UID, anchorProp, p.Value)
		}
		out.Anchor = mo.Some(values[0])
	}

	if p := cb.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = strings.TrimSpace(p.Value)
	}

	var err error
	if out.RDates, err = collectDates(cb, propRdate); err != nil {
		return out, fmt.Errorf("%s: %w", out.UID, err)
	}
	if out.ExDates, err = collectDates(cb, ical.ComponentPropertyExdate); err != nil {
		return out, fmt.Errorf("%s: %w", out.UID, err)
	}

	for _, sub := range cb.Components {
		va, ok := sub.(*ical.VAlarm)
		if !ok {
			continue
		}
		def, ok := parseAlarm(out.UID, out.Summary, va)
		if ok {
			out.Alarms = append(out.Alarms, def)
		}
	}

	return out, nil
}

// collectDates gathers every value of a repeatable date list property
// such as RDATE or EXDATE.
func collectDates(cb *ical.ComponentBase, prop ical.ComponentProperty) ([]model.Anchor, error) {
	var out []model.Anchor
	for _, p := range cb.GetProperties(prop) {
		values, err := parseDateValues(p)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q: %w", prop, p.Value, err)
		}
		out = append(out, values...)
	}
	return out, nil
}

func parseAlarm(uid, summary string, va *ical.VAlarm) (model.AlarmDefinition, bool) {
	p := va.GetProperty(propTrigger)
	if p == nil {
		appLog.Debug("ics: valarm without trigger", "uid", uid)
		return model.AlarmDefinition{}, false
	}
	if strings.EqualFold(param(p, "VALUE"), "DATE-TIME") {
		appLog.Debug("ics: absolute valarm trigger not supported", "uid", uid, "trigger", p.Value)
		return model.AlarmDefinition{}, false
	}

	offset, err := parseTrigger(p.Value)
	if err != nil {
		appLog.Error("ics: bad valarm trigger", err, "uid", uid, "trigger", p.Value)
		return model.AlarmDefinition{}, false
	}

	desc := summary
	if d := va.GetProperty(ical.ComponentPropertyDescription); d != nil && strings.TrimSpace(d.Value) != "" {
		desc = textUnescaper.Replace(d.Value)
	}
	return model.AlarmDefinition{Offset: offset, Description: desc}, true
}

// parseDateValues reads a DATE or DATE-TIME property, honoring VALUE and
// TZID parameters. Comma-separated lists yield several anchors; PERIOD
// values contribute their start.
func parseDateValues(p *ical.IANAProperty) ([]model.Anchor, error) {
	dateOnly := strings.EqualFold(param(p, "VALUE"), "DATE")

	var loc *time.Location
	if tzid := strings.Trim(param(p, "TZID"), `"/`); tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			appLog.Warn("ics: unknown TZID, reading as floating time", "tzid", tzid)
		} else {
			loc = l
		}
	}

	var out []model.Anchor
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '/'); i >= 0 {
			part = part[:i]
		}
		a, err := parseDateValue(part, dateOnly, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, errors.New("empty date value")
	}
	return out, nil
}

func parseDateValue(v string, dateOnly bool, loc *time.Location) (model.Anchor, error) {
	switch {
	case dateOnly || len(v) == len(layoutDate):
		t, err := time.ParseInLocation(layoutDate, v[:min(len(v), len(layoutDate))], time.UTC)
		return model.Anchor{Value: t, DateOnly: true}, err
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(layoutUTC, v)
		return model.Anchor{Value: t}, err
	case loc != nil:
		t, err := time.ParseInLocation(layoutDateTime, v, loc)
		return model.Anchor{Value: t}, err
	default:
		t, err := time.ParseInLocation(layoutDateTime, v, time.UTC)
		return model.Anchor{Value: t, Floating: true}, err
	}
}

func param(p *ical.IANAProperty, name string) string {
	if p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
