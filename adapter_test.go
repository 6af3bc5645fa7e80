package recur

import (
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTZID(tzid string) ics.PropertyParameter {
	return &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{tzid}}
}

func newYorkVTimezone(cal *ics.Calendar) {
	tz := cal.AddTimezone("America/New_York")

	std := tz.AddStandard()
	std.AddProperty(ics.ComponentProperty(ics.PropertyDtstart), "20071104T020000")
	std.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), "-0400")
	std.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), "-0500")
	std.AddProperty(ics.ComponentPropertyRrule, "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU")

	dst := &ics.Daylight{}
	dst.AddProperty(ics.ComponentProperty(ics.PropertyDtstart), "20070311T020000")
	dst.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), "-0500")
	dst.AddProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), "-0400")
	dst.AddProperty(ics.ComponentPropertyRrule, "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU")
	tz.Components = append(tz.Components, dst)
}

func TestFromICSDecodesTimezones(t *testing.T) {
	cal := ics.NewCalendar()
	newYorkVTimezone(cal)

	decoded, err := FromICS(cal)
	require.NoError(t, err)
	observances, ok := decoded.Zones["America/New_York"]
	require.True(t, ok)
	require.Len(t, observances, 2)

	std := observances[0]
	assert.Equal(t, -240, std.OffsetFrom)
	assert.Equal(t, -300, std.OffsetTo)
	assert.True(t, std.Start.Equal(time.Date(2007, time.November, 4, 2, 0, 0, 0, time.UTC)))
	require.NotNil(t, std.Rule)
	assert.Equal(t, FrequencyYearly, std.Rule.Frequency)
}

func TestFromICSDecodesEvent(t *testing.T) {
	cal := ics.NewCalendar()
	event := cal.AddEvent("weekly-meeting@example.com")
	event.SetProperty(ics.ComponentPropertySummary, "Weekly Meeting")
	event.SetProperty(ics.ComponentPropertyDtStart, "20240603T090000", withTZID("America/New_York"))
	event.SetProperty(ics.ComponentPropertyDtEnd, "20240603T100000", withTZID("America/New_York"))
	event.AddRrule("FREQ=WEEKLY;BYDAY=MO;COUNT=3")
	event.AddExdate("20240610T090000")
	event.AddRdate("20240620T090000")

	decoded, err := FromICS(cal)
	require.NoError(t, err)
	require.Len(t, decoded.Events, 1)

	got := decoded.Events[0]
	assert.Equal(t, "weekly-meeting@example.com", got.UID)
	assert.Equal(t, "Weekly Meeting", got.Summary)
	assert.Equal(t, "America/New_York", got.TZID)
	assert.False(t, got.UTC)
	assert.False(t, got.AllDay)
	assert.True(t, got.Start.Equal(time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)))
	require.NotNil(t, got.End)
	require.NotNil(t, got.Rule)
	require.Len(t, got.ExDates, 1)
	require.Len(t, got.RDates, 1)
	assert.Equal(t, time.Hour, got.EffectiveDuration())
}

func TestFromICSDecodesUTCAndAllDay(t *testing.T) {
	cal := ics.NewCalendar()
	utcEvent := cal.AddEvent("utc@example.com")
	utcEvent.SetProperty(ics.ComponentPropertyDtStart, "20240603T090000Z")

	allDay := cal.AddEvent("allday@example.com")
	allDay.SetProperty(ics.ComponentPropertyDtStart, "20240604", ics.WithValue(string(ics.ValueDataTypeDate)))

	decoded, err := FromICS(cal)
	require.NoError(t, err)
	require.Len(t, decoded.Events, 2)

	assert.True(t, decoded.Events[0].UTC)
	assert.False(t, decoded.Events[0].AllDay)

	assert.True(t, decoded.Events[1].AllDay)
	assert.False(t, decoded.Events[1].UTC)
	assert.True(t, decoded.Events[1].Start.Equal(time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24*time.Hour, decoded.Events[1].EffectiveDuration())
}

func TestFromICSRejectsBadRrule(t *testing.T) {
	cal := ics.NewCalendar()
	event := cal.AddEvent("bad@example.com")
	event.SetProperty(ics.ComponentPropertyDtStart, "20240603T090000Z")
	event.AddRrule("FREQ=NEVER")

	_, err := FromICS(cal)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestExpandICSEndToEnd(t *testing.T) {
	cal := ics.NewCalendar()
	newYorkVTimezone(cal)

	event := cal.AddEvent("standup@example.com")
	event.SetProperty(ics.ComponentPropertySummary, "Standup")
	event.SetProperty(ics.ComponentPropertyDtStart, "20240308T090000", withTZID("America/New_York"))
	event.SetProperty(ics.ComponentPropertyDtEnd, "20240308T091500", withTZID("America/New_York"))
	event.AddRrule("FREQ=DAILY;COUNT=4")

	occurrences, err := ExpandICS(cal,
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, occurrences, 4)

	// Wall time 09:00 New York: UTC-5 before the March 10 transition, UTC-4
	// after it.
	assert.True(t, occurrences[0].Start.Equal(time.Date(2024, time.March, 8, 14, 0, 0, 0, time.UTC)))
	assert.True(t, occurrences[2].Start.Equal(time.Date(2024, time.March, 10, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, 15*time.Minute, occurrences[0].End.Sub(occurrences[0].Start))
}
