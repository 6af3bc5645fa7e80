package recur

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newYorkObservances models the America/New_York VTIMEZONE as commonly
// published: DST starts the second Sunday of March at 02:00 local, standard
// time returns the first Sunday of November at 02:00 local.
func newYorkObservances(t *testing.T) []Observance {
	t.Helper()
	return []Observance{
		{
			Start:      time.Date(2007, time.March, 11, 2, 0, 0, 0, time.UTC),
			OffsetFrom: -300,
			OffsetTo:   -240,
			Rule:       mustRule(t, "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU"),
		},
		{
			Start:      time.Date(2007, time.November, 4, 2, 0, 0, 0, time.UTC),
			OffsetFrom: -240,
			OffsetTo:   -300,
			Rule:       mustRule(t, "FREQ=YEARLY;BYMONTH=11;BYDAY=1SU"),
		},
	}
}

func TestExpandObservanceSingleTransition(t *testing.T) {
	obs := Observance{
		Start:      time.Date(1970, time.November, 1, 2, 0, 0, 0, time.UTC),
		OffsetFrom: -240,
		OffsetTo:   -300,
	}
	transitions, err := expandObservance(&obs, time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	// 02:00 at UTC-4 is 06:00 UTC.
	assert.True(t, transitions[0].At.Equal(time.Date(1970, time.November, 1, 6, 0, 0, 0, time.UTC)))
	assert.Equal(t, -300, transitions[0].Offset)
}

func TestExpandObservanceStartPastRangeEnd(t *testing.T) {
	obs := Observance{
		Start:      time.Date(2030, time.March, 10, 2, 0, 0, 0, time.UTC),
		OffsetFrom: -300,
		OffsetTo:   -240,
		Rule:       mustRule(t, "FREQ=YEARLY;BYMONTH=3;BYDAY=2SU"),
		RDates:     []time.Time{time.Date(2031, time.March, 9, 2, 0, 0, 0, time.UTC)},
	}
	transitions, err := expandObservance(&obs, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, transitions)
}

func TestExpandObservanceRecurring(t *testing.T) {
	observances := newYorkObservances(t)
	rangeEnd := time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC)

	transitions, err := expandObservance(&observances[0], rangeEnd)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	sort.Slice(transitions, func(i, j int) bool { return transitions[i].At.Before(transitions[j].At) })

	// Second Sundays of March 2007 and 2008, 02:00 at UTC-5 = 07:00 UTC.
	assert.True(t, transitions[0].At.Equal(time.Date(2007, time.March, 11, 7, 0, 0, 0, time.UTC)))
	assert.True(t, transitions[1].At.Equal(time.Date(2008, time.March, 9, 7, 0, 0, 0, time.UTC)))
	for _, tr := range transitions {
		assert.Equal(t, -240, tr.Offset)
	}
}

func TestExpandObservanceRDates(t *testing.T) {
	obs := Observance{
		Start:      time.Date(1970, time.March, 8, 2, 0, 0, 0, time.UTC),
		OffsetFrom: -300,
		OffsetTo:   -240,
		RDates: []time.Time{
			time.Date(1971, time.March, 14, 2, 0, 0, 0, time.UTC),
			time.Date(2050, time.March, 13, 2, 0, 0, 0, time.UTC), // past range end
		},
	}
	transitions, err := expandObservance(&obs, time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.True(t, transitions[1].At.Equal(time.Date(1971, time.March, 14, 7, 0, 0, 0, time.UTC)))
}
