package recur

import (
	"fmt"
	"sort"
	"time"
)

// Event is one decoded VEVENT, reduced to the fields recurrence expansion
// needs.  Start, End, RDates, ExDates and RecurrenceID are local wall times:
// their calendar fields are interpreted against TZID when one is set,
// as UTC when UTC is set, and as floating time otherwise.
type Event struct {
	UID     string
	Summary string
	// Start is the DTSTART wall time.  A zero Start means the event has no
	// DTSTART and cannot be expanded.
	Start time.Time
	// TZID names the zone Start and the other wall times belong to.  Empty
	// for UTC and floating events.
	TZID string
	// UTC is set when DTSTART carried the Z suffix.
	UTC bool
	// AllDay is set when DTSTART carried VALUE=DATE.
	AllDay bool
	// End is the DTEND wall time, or nil.  DTEND and Duration are mutually
	// exclusive in a valid calendar; End wins when both are present.
	End *time.Time
	// Duration is the decoded DURATION property, or nil.
	Duration *time.Duration
	// Rule is the event's RRULE, or nil for a one-off event.
	Rule *RecurrenceRule
	// ExRules holds deprecated EXRULE exclusion rules (RFC 2445 section
	// 4.8.5.2); instants they generate are excluded like EXDATEs.
	ExRules []*RecurrenceRule
	// RDates and ExDates add and remove individual instants.
	RDates  []time.Time
	ExDates []time.Time
	// RecurrenceID marks this event as an override of the base series
	// instance starting at that wall time.
	RecurrenceID *time.Time
}

// Occurrence is one concrete instance of an event: resolved UTC start and
// end plus a reference back to the source event.  Occurrences are computed
// per query and never stored.
type Occurrence struct {
	Start time.Time
	End   time.Time
	Event *Event
}

// occurrenceSlack widens the wall-clock expansion bound so that no instant
// whose UTC resolution lands inside the query window is missed; no real
// zone offset exceeds a day.
const occurrenceSlack = 24 * time.Hour

// AssembleOccurrences expands one event into its deduplicated, ascending
// UTC occurrences whose start falls inside [rangeStart, rangeEnd].  The
// included instants are the event start, the RRULE expansion and every
// RDATE; EXDATEs and EXRULE-generated instants are removed.  Instants are
// considered equal when they coincide to the millisecond.
func AssembleOccurrences(event *Event, resolver *Resolver, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	if event.Start.IsZero() {
		return nil, fmt.Errorf("%w: uid %q", ErrMissingDtStart, event.UID)
	}
	duration := event.EffectiveDuration()
	wallLimit := rangeEnd.UTC().Add(occurrenceSlack)

	included := map[int64]time.Time{}
	include := func(wall time.Time) {
		key := wallUTC(wall).UnixMilli()
		if _, ok := included[key]; !ok {
			included[key] = wall
		}
	}
	include(event.Start)
	if event.Rule != nil {
		it, err := NewRuleIterator(wallUTC(event.Start), event.Rule, wallLimit)
		if err != nil {
			return nil, fmt.Errorf("uid %q: %w", event.UID, err)
		}
		for {
			wall, ok := it.Next()
			if !ok {
				break
			}
			include(wall)
		}
	}
	for _, rd := range event.RDates {
		include(rd)
	}

	excluded := map[int64]bool{}
	for _, ex := range event.ExDates {
		excluded[wallUTC(ex).UnixMilli()] = true
	}
	for _, exRule := range event.ExRules {
		instants, err := ExpandRule(wallUTC(event.Start), exRule, wallLimit)
		if err != nil {
			return nil, fmt.Errorf("uid %q: %w", event.UID, err)
		}
		for _, instant := range instants {
			excluded[instant.UnixMilli()] = true
		}
	}

	var occurrences []Occurrence
	for key, wall := range included {
		if excluded[key] {
			continue
		}
		start, err := event.resolveStart(wall, resolver)
		if err != nil {
			return nil, err
		}
		if start.Before(rangeStart) || start.After(rangeEnd) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			Start: start,
			End:   start.Add(duration),
			Event: event,
		})
	}
	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences, nil
}

// EffectiveDuration returns the occurrence length: DTEND minus DTSTART when
// DTEND is present, else the DURATION property, else one day for all-day
// events and zero otherwise.
func (event *Event) EffectiveDuration() time.Duration {
	switch {
	case event.End != nil:
		return wallUTC(*event.End).Sub(wallUTC(event.Start))
	case event.Duration != nil:
		return *event.Duration
	case event.AllDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// resolveStart turns a wall-clock instant into UTC: floating times are read
// as UTC by convention, UTC times already are, and zoned times go through
// the resolver.
func (event *Event) resolveStart(wall time.Time, resolver *Resolver) (time.Time, error) {
	if event.TZID == "" || event.UTC {
		return wallUTC(wall), nil
	}
	utc, err := resolver.ToUTC(event.TZID, wall)
	if err != nil {
		return time.Time{}, fmt.Errorf("uid %q: %w", event.UID, err)
	}
	return utc, nil
}
