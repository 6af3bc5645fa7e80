package recur

import (
	"time"
)

// Observance is one decoded STANDARD or DAYLIGHT sub-component of a
// VTIMEZONE (RFC 5545 section 3.6.5): a single offset regime together with
// the rule describing when it takes effect.  Start and RDates are local
// wall times expressed in the offset that precedes the transition
// (TZOFFSETFROM); only their calendar fields are meaningful, the Location
// they carry is ignored.
type Observance struct {
	// Start is the local DTSTART of the observance, relative to OffsetFrom.
	Start time.Time
	// OffsetFrom is the UTC offset in effect before each transition, in
	// signed minutes east of UTC.
	OffsetFrom int
	// OffsetTo is the UTC offset in effect from each transition onward.
	OffsetTo int
	// Rule is the observance's recurrence rule, or nil when the observance
	// describes the single transition at Start.
	Rule *RecurrenceRule
	// RDates lists additional transition instants, like Start relative to
	// OffsetFrom.
	RDates []time.Time
}

// Transition is one resolved point of a zone's timeline: from the UTC
// instant At onward the zone's offset is Offset minutes east of UTC.
type Transition struct {
	At     time.Time
	Offset int
}

// expandObservance resolves one observance into the transitions it
// contributes up to rangeEnd.  The result is unsorted; the zone timeline
// merges and sorts the transitions of all observances.  An observance whose
// own start already lies past rangeEnd contributes nothing.
func expandObservance(obs *Observance, rangeEnd time.Time) ([]Transition, error) {
	from := time.Duration(obs.OffsetFrom) * time.Minute
	first := wallUTC(obs.Start).Add(-from)
	if first.After(rangeEnd) {
		return nil, nil
	}

	var transitions []Transition
	if obs.Rule != nil {
		rule := *obs.Rule
		if rule.Until != nil {
			// UNTIL inside a VTIMEZONE rule is a UTC instant; shift it into
			// the observance's wall clock so the iterator compares like with
			// like.
			untilWall := rule.Until.UTC().Add(from)
			rule.Until = &untilWall
		}
		wallLimit := rangeEnd.UTC().Add(from)
		it, err := NewRuleIterator(wallUTC(obs.Start), &rule, wallLimit)
		if err != nil {
			return nil, err
		}
		for {
			wall, ok := it.Next()
			if !ok {
				break
			}
			transitions = append(transitions, Transition{At: wall.Add(-from), Offset: obs.OffsetTo})
		}
	} else {
		transitions = append(transitions, Transition{At: first, Offset: obs.OffsetTo})
	}

	for _, rd := range obs.RDates {
		at := wallUTC(rd).Add(-from)
		if !at.After(rangeEnd) {
			transitions = append(transitions, Transition{At: at, Offset: obs.OffsetTo})
		}
	}
	return transitions, nil
}

// wallUTC reinterprets t's calendar fields as a UTC time, discarding
// whatever location t carries.  Zone math applies explicit offsets to wall
// clocks; the Go location must not contribute a second opinion.
func wallUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
