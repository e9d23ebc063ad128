// Package testdata holds calendar fixtures shared by package tests.
package testdata

import "strings"

const VEvent = `
BEGIN:VEVENT
UID:20190310
DTSTAMP:20190310T150000Z
DTSTART:20190310T150000Z
DTEND:20190310T160000Z
SUMMARY:Annual Employee Review
CLASS:PRIVATE
END:VEVENT
`

const VEventAlarm = `
BEGIN:VEVENT
UID:20190310
DTSTAMP:20190310T150000Z
DTSTART:20190310T150000Z
DTEND:20190310T160000Z
SUMMARY:Breakfast Meeting
CLASS:PRIVATE
BEGIN:VALARM
TRIGGER:-PT30M
ACTION:DISPLAY
DESCRIPTION:Breakfast Meeting Reminder
END:VALARM
END:VEVENT
`

const VEventDate = `
BEGIN:VEVENT
UID:20190310
DTSTAMP:20190310T150000Z
DTSTART:20190310
SUMMARY:Birthday
CLASS:PRIVATE
END:VEVENT
`

const VEventDateAlarm = `
BEGIN:VEVENT
UID:20190310
DTSTAMP:20190310T150000Z
DTSTART;VALUE=DATE:20190310
SUMMARY:Breakfast Meeting
CLASS:PRIVATE
BEGIN:VALARM
TRIGGER:-PT30M
ACTION:DISPLAY
DESCRIPTION:Breakfast Meeting Reminder
END:VALARM
END:VEVENT
`

const VEventRRule = `
BEGIN:VEVENT
UID:20190310
DTSTAMP:20190310T150000Z
DTSTART:20190310T150000Z
SUMMARY:RRULE VEVENT
CLASS:PRIVATE
RRULE:FREQ=DAILY
BEGIN:VALARM
TRIGGER:-PT30M
ACTION:DISPLAY
DESCRIPTION:Breakfast Meeting Reminder
END:VALARM
END:VEVENT
`

const VTodo = `
BEGIN:VTODO
UID:20190310
DTSTAMP:20190310T150000Z
DUE:20190310T170000Z
SUMMARY:Income Tax Preparation
PRIORITY:1
STATUS:NEEDS-ACTION
END:VTODO
`

const VTodoDate = `
BEGIN:VTODO
UID:20190310
DTSTAMP:20190310T150000Z
DUE:20190310
SUMMARY:Income Tax Preparation
PRIORITY:1
STATUS:NEEDS-ACTION
END:VTODO
`

const VTodoRRule = `
BEGIN:VTODO
UID:20190310
DTSTAMP:20190310T150000Z
DUE:20190310T170000Z
SUMMARY:Income Tax Preparation
PRIORITY:1
SEQUENCE:0
STATUS:NEEDS-ACTION
RRULE:FREQ=DAILY
END:VTODO
`

const VTodoNoDate = `
BEGIN:VTODO
UID:20190310
DTSTAMP:20190310T150000Z
SUMMARY:Income Tax Preparation
PRIORITY:1
STATUS:NEEDS-ACTION
END:VTODO
`

const VTodoStartingSequence = `
BEGIN:VTODO
UID:20190310
DTSTAMP:20190310T150000Z
DUE:20100310T170000Z
SUMMARY:Income Tax Preparation
PRIORITY:1
SEQUENCE:2
STATUS:NEEDS-ACTION
RRULE:FREQ=DAILY
END:VTODO
`

const RRuleEvent = `
BEGIN:VEVENT
SUMMARY:Training
DTSTART;TZID=Europe/Brussels:20190207T100000
DTEND;TZID=Europe/Brussels:20190207T120000
DTSTAMP:20190131T153505
UID:BY8RPO6AXKEKM5EFBFN0W9
SEQUENCE:0
RRULE:FREQ=DAILY;COUNT=7;BYDAY=MO,TU,WE,TH,FR
RDATE;TZID=Europe/Brussels:20190401T100000,20190402T100000
EXDATE;TZID=Europe/Brussels:20190212T100000,20190213T100000
CLASS:PUBLIC
CREATED:20190131T153505
LAST-MODIFIED:20190131T153629
STATUS:CONFIRMED
BEGIN:VALARM
ACTION:DISPLAY
DESCRIPTION:Training Reminder
TRIGGER:-PT1H
END:VALARM
END:VEVENT
`

const RRuleTodo = `
BEGIN:VTODO
DTSTAMP:20190114T070828Z
UID:a8f5a030c6f94010a6654d79b8be5372@mirabelle
SEQUENCE:58
CREATED:20180316T230011Z
LAST-MODIFIED:20190114T070827Z
SUMMARY:Check something
STATUS:NEEDS-ACTION
RRULE:FREQ=MONTHLY;INTERVAL=4;BYDAY=3MO
DUE;VALUE=DATE:20190318
END:VTODO
`

// Calendar wraps component fixtures into a VCALENDAR with CRLF line
// endings.
func Calendar(components ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//remhind//fixtures//EN\r\n")
	for _, c := range components {
		for _, line := range strings.Split(strings.TrimSpace(c), "\n") {
			b.WriteString(strings.TrimRight(line, "\r"))
			b.WriteString("\r\n")
		}
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

// With replaces the first occurrence of from in fixture, e.g. to flip a
// STATUS or bump a SEQUENCE.
func With(fixture, from, to string) string {
	return strings.Replace(fixture, from, to, 1)
}
