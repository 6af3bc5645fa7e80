package recur

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ResolverConfig carries the knobs of a Resolver.
type ResolverConfig struct {
	// Horizon bounds how far forward zone timelines are expanded.  The
	// horizon is independent of any caller's query range: offsets stabilize
	// quickly, so a fixed forward window is enough.  Zero means ten years
	// from construction time.
	Horizon time.Time
}

// Resolver maps a (TZID, local time) pair to the UTC offset in effect,
// reconstructing each zone's transition timeline from its VTIMEZONE
// observances.  TZIDs without a registered zone fall back to the system
// timezone database.  Timelines are built once per distinct observance set
// and cached forever; zone sets are finite and small, so nothing is ever
// evicted.  A Resolver is safe for concurrent use.
type Resolver struct {
	horizon time.Time
	zones   map[string][]Observance

	mu    sync.Mutex
	cache map[string]*zoneTimeline
}

type zoneTimeline struct {
	// transitions is sorted by At, non-decreasing.
	transitions []Transition
	// initialOffset applies to instants before the first transition: the
	// OffsetFrom of the observance with the earliest start.
	initialOffset int
}

// NewResolver returns a Resolver with the default ten-year horizon.
func NewResolver() *Resolver {
	return NewResolverWithConfig(ResolverConfig{})
}

// NewResolverWithConfig returns a Resolver with an explicit configuration.
func NewResolverWithConfig(config ResolverConfig) *Resolver {
	horizon := config.Horizon
	if horizon.IsZero() {
		horizon = time.Now().AddDate(10, 0, 0)
	}
	return &Resolver{
		horizon: horizon,
		zones:   map[string][]Observance{},
		cache:   map[string]*zoneTimeline{},
	}
}

// AddZone registers the observance set of one VTIMEZONE under its TZID.
// Registering the same TZID again replaces the previous definition.
func (r *Resolver) AddZone(tzid string, observances []Observance) {
	r.zones[tzid] = observances
}

// HasZone reports whether a VTIMEZONE definition is registered for tzid.
func (r *Resolver) HasZone(tzid string) bool {
	_, ok := r.zones[tzid]
	return ok
}

// ResolveOffset returns the UTC offset, in signed minutes east of UTC, that
// applies to the given local wall time in the named zone.  An ambiguous
// local time (the repeated hour after a fall-back transition) resolves to
// its first occurrence; a nonexistent local time (inside a spring-forward
// gap) resolves to the offset in effect just before the gap.
func (r *Resolver) ResolveOffset(tzid string, local time.Time) (int, error) {
	observances, ok := r.zones[tzid]
	if !ok {
		return r.systemOffset(tzid, local)
	}
	tl, err := r.timelineFor(observances)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", err, tzid)
	}
	return tl.resolve(wallUTC(local)), nil
}

// ToUTC converts a local wall time in the named zone to the UTC instant it
// denotes, applying the ResolveOffset policies for ambiguous and
// nonexistent times.
func (r *Resolver) ToUTC(tzid string, local time.Time) (time.Time, error) {
	offset, err := r.ResolveOffset(tzid, local)
	if err != nil {
		return time.Time{}, err
	}
	return wallUTC(local).Add(-time.Duration(offset) * time.Minute), nil
}

// systemOffset resolves a TZID with no VTIMEZONE definition against the
// system timezone database.  The Go runtime's own disambiguation applies to
// times inside DST transitions here.
func (r *Resolver) systemOffset(tzid string, local time.Time) (int, error) {
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrTimezoneNotFound, tzid)
	}
	t := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
	_, seconds := t.Zone()
	return seconds / 60, nil
}

// timelineFor returns the merged, sorted transition timeline of an
// observance set, building it at most once per distinct set.  The cache key
// is the structural content of the observances, so two zones with identical
// definitions share one timeline.
func (r *Resolver) timelineFor(observances []Observance) (*zoneTimeline, error) {
	if len(observances) == 0 {
		return nil, ErrNoObservances
	}
	key := timelineKey(observances)

	r.mu.Lock()
	defer r.mu.Unlock()
	if tl, ok := r.cache[key]; ok {
		return tl, nil
	}
	tl, err := buildTimeline(observances, r.horizon)
	if err != nil {
		return nil, err
	}
	r.cache[key] = tl
	return tl, nil
}

func timelineKey(observances []Observance) string {
	var b strings.Builder
	for _, obs := range observances {
		fmt.Fprintf(&b, "%s|%d|%d|", obs.Start.Format(icalTimestampFormatLocal), obs.OffsetFrom, obs.OffsetTo)
		if obs.Rule != nil {
			b.WriteString(obs.Rule.String())
		}
		for _, rd := range obs.RDates {
			b.WriteByte('|')
			b.WriteString(rd.Format(icalTimestampFormatLocal))
		}
		b.WriteByte(';')
	}
	return b.String()
}

func buildTimeline(observances []Observance, horizon time.Time) (*zoneTimeline, error) {
	tl := &zoneTimeline{}
	earliest := 0
	for i := range observances {
		if wallUTC(observances[i].Start).Before(wallUTC(observances[earliest].Start)) {
			earliest = i
		}
		transitions, err := expandObservance(&observances[i], horizon)
		if err != nil {
			return nil, err
		}
		tl.transitions = append(tl.transitions, transitions...)
	}
	tl.initialOffset = observances[earliest].OffsetFrom
	sort.SliceStable(tl.transitions, func(i, j int) bool {
		return tl.transitions[i].At.Before(tl.transitions[j].At)
	})
	return tl, nil
}

// offsetAt returns the offset in effect at a UTC instant: the offset of the
// last transition at or before it, or the initial offset when the instant
// precedes every transition.
func (tl *zoneTimeline) offsetAt(utc time.Time) int {
	i := sort.Search(len(tl.transitions), func(i int) bool {
		return tl.transitions[i].At.After(utc)
	})
	if i == 0 {
		return tl.initialOffset
	}
	return tl.transitions[i-1].Offset
}

// resolve maps a local wall time to its offset.  Each offset the zone has
// ever used is hypothesized in turn: the hypothesis is valid when
// converting the wall time to UTC under it lands in a span where that very
// offset is in effect.  One valid hypothesis is the normal case; two mean
// the wall time is ambiguous and the chronologically first interpretation
// wins; zero means the wall time sits inside a spring-forward gap and the
// pre-gap offset applies.
func (tl *zoneTimeline) resolve(wall time.Time) int {
	type hypothesis struct {
		utc    time.Time
		offset int
	}
	var valid []hypothesis
	for _, offset := range tl.distinctOffsets() {
		utc := wall.Add(-time.Duration(offset) * time.Minute)
		if tl.offsetAt(utc) == offset {
			valid = append(valid, hypothesis{utc: utc, offset: offset})
		}
	}
	if len(valid) > 0 {
		sort.Slice(valid, func(i, j int) bool { return valid[i].utc.Before(valid[j].utc) })
		return valid[0].offset
	}

	// No valid reading: wall falls in a gap. Find the forward transition
	// whose local-time jump covers it and answer with the offset before the
	// jump.
	prev := tl.initialOffset
	for _, tr := range tl.transitions {
		if tr.Offset > prev {
			gapStart := tr.At.Add(time.Duration(prev) * time.Minute)
			gapEnd := tr.At.Add(time.Duration(tr.Offset) * time.Minute)
			if !wall.Before(gapStart) && wall.Before(gapEnd) {
				return prev
			}
		}
		prev = tr.Offset
	}
	return tl.initialOffset
}

func (tl *zoneTimeline) distinctOffsets() []int {
	offsets := []int{tl.initialOffset}
	for _, tr := range tl.transitions {
		if !containsInt(offsets, tr.Offset) {
			offsets = append(offsets, tr.Offset)
		}
	}
	return offsets
}
