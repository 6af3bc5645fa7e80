package recur

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// FromICS decodes the parsed component tree of a calendar into the value
// records this package expands: every VTIMEZONE becomes an observance set,
// every VEVENT an Event.  Only the recurrence-relevant properties are read;
// the rest of the tree is left to other consumers.
func FromICS(cal *ics.Calendar) (*Calendar, error) {
	out := &Calendar{Zones: map[string][]Observance{}}
	for _, tz := range cal.Timezones() {
		tzidProp := tz.GetProperty(ics.ComponentPropertyTzid)
		if tzidProp == nil {
			return nil, fmt.Errorf("VTIMEZONE without TZID")
		}
		observances, err := decodeObservances(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", tzidProp.Value, err)
		}
		out.Zones[tzidProp.Value] = observances
	}
	for _, ve := range cal.Events() {
		event, err := decodeEvent(ve)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, event)
	}
	return out, nil
}

// ExpandICS is the one-call path from a parsed calendar to its occurrences
// in [rangeStart, rangeEnd].
func ExpandICS(cal *ics.Calendar, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	decoded, err := FromICS(cal)
	if err != nil {
		return nil, err
	}
	return Expand(decoded, rangeStart, rangeEnd)
}

func decodeObservances(tz *ics.VTimezone) ([]Observance, error) {
	var observances []Observance
	for _, sub := range tz.Components {
		switch block := sub.(type) {
		case *ics.Standard:
			obs, err := decodeObservance(&block.ComponentBase)
			if err != nil {
				return nil, fmt.Errorf("STANDARD: %w", err)
			}
			observances = append(observances, obs)
		case *ics.Daylight:
			obs, err := decodeObservance(&block.ComponentBase)
			if err != nil {
				return nil, fmt.Errorf("DAYLIGHT: %w", err)
			}
			observances = append(observances, obs)
		}
	}
	return observances, nil
}

func decodeObservance(cb *ics.ComponentBase) (Observance, error) {
	var obs Observance

	startProp := cb.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return obs, fmt.Errorf("missing DTSTART")
	}
	start, err := parseWallValue(startProp.Value)
	if err != nil {
		return obs, err
	}
	obs.Start = start

	fromProp := cb.GetProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom))
	toProp := cb.GetProperty(ics.ComponentProperty(ics.PropertyTzoffsetto))
	if fromProp == nil || toProp == nil {
		return obs, fmt.Errorf("missing TZOFFSETFROM or TZOFFSETTO")
	}
	if obs.OffsetFrom, err = ParseUTCOffset(fromProp.Value); err != nil {
		return obs, err
	}
	if obs.OffsetTo, err = ParseUTCOffset(toProp.Value); err != nil {
		return obs, err
	}

	if ruleProp := cb.GetProperty(ics.ComponentPropertyRrule); ruleProp != nil {
		if obs.Rule, err = ParseRule(ruleProp.Value); err != nil {
			return obs, err
		}
	}
	for _, rdateProp := range cb.GetProperties(ics.ComponentPropertyRdate) {
		rdates, err := parseWallList(rdateProp.Value)
		if err != nil {
			return obs, err
		}
		obs.RDates = append(obs.RDates, rdates...)
	}
	return obs, nil
}

func decodeEvent(ve *ics.VEvent) (*Event, error) {
	event := &Event{}
	if uidProp := ve.GetProperty(ics.ComponentPropertyUniqueId); uidProp != nil {
		event.UID = uidProp.Value
	}
	if summaryProp := ve.GetProperty(ics.ComponentPropertySummary); summaryProp != nil {
		event.Summary = summaryProp.Value
	}

	startProp := ve.GetProperty(ics.ComponentPropertyDtStart)
	if startProp != nil {
		start, err := parseWallValue(startProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: DTSTART: %w", event.UID, err)
		}
		event.Start = start
		event.UTC = strings.HasSuffix(startProp.Value, "Z")
		event.TZID = singleParameter(startProp, "TZID")
		event.AllDay = isDateValue(startProp)
	}

	if endProp := ve.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		end, err := parseWallValue(endProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: DTEND: %w", event.UID, err)
		}
		event.End = &end
	}
	if durationProp := ve.GetProperty(ics.ComponentPropertyDuration); durationProp != nil {
		duration, err := ParseDuration(durationProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: %w", event.UID, err)
		}
		event.Duration = &duration
	}

	if ruleProp := ve.GetProperty(ics.ComponentPropertyRrule); ruleProp != nil {
		rule, err := ParseRule(ruleProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: %w", event.UID, err)
		}
		event.Rule = rule
	}
	for _, exRuleProp := range ve.GetProperties(ics.ComponentPropertyExrule) {
		exRule, err := ParseRule(exRuleProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: EXRULE: %w", event.UID, err)
		}
		event.ExRules = append(event.ExRules, exRule)
	}
	for _, rdateProp := range ve.GetProperties(ics.ComponentPropertyRdate) {
		rdates, err := parseWallList(rdateProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: RDATE: %w", event.UID, err)
		}
		event.RDates = append(event.RDates, rdates...)
	}
	for _, exDateProp := range ve.GetProperties(ics.ComponentPropertyExdate) {
		exdates, err := parseWallList(exDateProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: EXDATE: %w", event.UID, err)
		}
		event.ExDates = append(event.ExDates, exdates...)
	}
	if ridProp := ve.GetProperty(ics.ComponentPropertyRecurrenceId); ridProp != nil {
		rid, err := parseWallValue(ridProp.Value)
		if err != nil {
			return nil, fmt.Errorf("uid %q: RECURRENCE-ID: %w", event.UID, err)
		}
		event.RecurrenceID = &rid
	}
	return event, nil
}

// parseWallValue decodes a DATE or DATE-TIME property value into a wall
// time carried in the UTC location.  Whether the wall clock is UTC, zoned
// or floating is decided by the caller from the Z suffix and the TZID
// parameter; the parsed fields are the same either way.
func parseWallValue(value string) (time.Time, error) {
	value = strings.TrimSuffix(value, "Z")
	for _, layout := range []string{icalTimestampFormatLocal, icalDateFormatLocal} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date-time value %q", value)
}

// parseWallList decodes a comma-separated RDATE/EXDATE value.  A PERIOD
// element contributes its start instant.
func parseWallList(value string) ([]time.Time, error) {
	var out []time.Time
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if slash := strings.IndexByte(item, '/'); slash >= 0 {
			item = item[:slash]
		}
		t, err := parseWallValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func singleParameter(prop *ics.IANAProperty, name string) string {
	values := prop.ICalParameters[name]
	if len(values) != 1 {
		return ""
	}
	return values[0]
}

func isDateValue(prop *ics.IANAProperty) bool {
	for _, v := range prop.ICalParameters[string(ics.ParameterValue)] {
		if strings.EqualFold(v, string(ics.ValueDataTypeDate)) {
			return true
		}
	}
	return false
}
