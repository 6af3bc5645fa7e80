package recur

import (
	"errors"
	"sort"
	"time"
)

// Calendar is the decoded input of one expansion run: the VTIMEZONE
// observance sets keyed by TZID, and the events to expand.  Build one by
// hand or with FromICS.
type Calendar struct {
	Zones  map[string][]Observance
	Events []*Event
}

// Expand computes every occurrence of every event in the calendar whose UTC
// start falls inside [rangeStart, rangeEnd], using a fresh resolver seeded
// with the calendar's zones.  Events carrying RECURRENCE-ID override the
// matching instance of their base series.  A failing event does not abort
// the batch: its error is collected and the remaining events still expand.
// The returned error joins all per-event failures, if any.
func Expand(cal *Calendar, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	return ExpandWithResolver(cal, NewResolver(), rangeStart, rangeEnd)
}

// ExpandWithResolver is Expand with a caller-owned resolver, letting cached
// zone timelines survive across queries.  The calendar's zones are
// registered on the resolver before expansion.
func ExpandWithResolver(cal *Calendar, resolver *Resolver, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	for tzid, observances := range cal.Zones {
		resolver.AddZone(tzid, observances)
	}

	baseEvents := make([]*Event, 0, len(cal.Events))
	overridesByUID := map[string][]*Event{}
	for _, event := range cal.Events {
		if event.RecurrenceID != nil {
			overridesByUID[event.UID] = append(overridesByUID[event.UID], event)
			continue
		}
		baseEvents = append(baseEvents, event)
	}

	var occurrences []Occurrence
	var errs []error
	for _, event := range baseEvents {
		assembled, err := AssembleOccurrences(event, resolver, rangeStart, rangeEnd)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		assembled, err = applyOverrides(assembled, overridesByUID[event.UID], resolver, rangeStart, rangeEnd)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		occurrences = append(occurrences, assembled...)
	}

	sort.Slice(occurrences, func(i, j int) bool {
		if !occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].Start.Before(occurrences[j].Start)
		}
		return occurrences[i].Event.UID < occurrences[j].Event.UID
	})
	return occurrences, errors.Join(errs...)
}

// applyOverrides replaces each base occurrence whose start matches an
// override's RECURRENCE-ID with the override's own occurrence.  The
// override's replacement start may land outside the query window, in which
// case the instance disappears from the result.
func applyOverrides(occurrences []Occurrence, overrides []*Event, resolver *Resolver, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	if len(overrides) == 0 {
		return occurrences, nil
	}
	out := make([]Occurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		override, err := matchOverride(occ, overrides, resolver)
		if err != nil {
			return nil, err
		}
		if override == nil {
			out = append(out, occ)
			continue
		}
		replacement, err := AssembleOccurrences(override, resolver, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, replacement...)
	}
	return out, nil
}

func matchOverride(occ Occurrence, overrides []*Event, resolver *Resolver) (*Event, error) {
	for _, override := range overrides {
		at, err := override.resolveStart(*override.RecurrenceID, resolver)
		if err != nil {
			return nil, err
		}
		if at.UnixMilli() == occ.Start.UnixMilli() {
			return override, nil
		}
	}
	return nil, nil
}
