package recur

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYorkResolver(t *testing.T) *Resolver {
	t.Helper()
	resolver := NewResolver()
	resolver.AddZone("America/New_York", newYorkObservances(t))
	return resolver
}

func TestResolveOffsetPlainTimes(t *testing.T) {
	resolver := newYorkResolver(t)

	testCases := []struct {
		name  string
		local time.Time
		want  int
	}{
		{
			name:  "winter standard time",
			local: time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC),
			want:  -300,
		},
		{
			name:  "summer daylight time",
			local: time.Date(2023, time.July, 15, 12, 0, 0, 0, time.UTC),
			want:  -240,
		},
		{
			name:  "before the first transition",
			local: time.Date(1960, time.June, 1, 12, 0, 0, 0, time.UTC),
			want:  -300,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolver.ResolveOffset("America/New_York", tc.local)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveOffsetAmbiguousHourPrefersFirstOccurrence(t *testing.T) {
	resolver := newYorkResolver(t)

	// 2023-11-05: clocks fall back from UTC-4 to UTC-5 at 02:00 local, so
	// 01:30 local happens twice; the first (daylight) reading wins.
	local := time.Date(2023, time.November, 5, 1, 30, 0, 0, time.UTC)
	got, err := resolver.ResolveOffset("America/New_York", local)
	require.NoError(t, err)
	assert.Equal(t, -240, got)
}

func TestResolveOffsetGapUsesPreGapOffset(t *testing.T) {
	resolver := newYorkResolver(t)

	// 2023-03-12: clocks spring forward from UTC-5 to UTC-4 at 02:00 local,
	// so 02:30 local never happens; the pre-gap offset applies.
	local := time.Date(2023, time.March, 12, 2, 30, 0, 0, time.UTC)
	got, err := resolver.ResolveOffset("America/New_York", local)
	require.NoError(t, err)
	assert.Equal(t, -300, got)
}

func TestResolveOffsetRoundTrip(t *testing.T) {
	resolver := newYorkResolver(t)

	// A local time that is neither ambiguous nor in a gap converts to UTC
	// and back to the same wall clock.
	local := time.Date(2023, time.June, 10, 14, 45, 0, 0, time.UTC)
	utc, err := resolver.ToUTC("America/New_York", local)
	require.NoError(t, err)
	assert.True(t, utc.Equal(time.Date(2023, time.June, 10, 18, 45, 0, 0, time.UTC)))

	offset, err := resolver.ResolveOffset("America/New_York", local)
	require.NoError(t, err)
	back := utc.Add(time.Duration(offset) * time.Minute)
	assert.True(t, back.Equal(wallUTC(local)))
}

func TestResolveOffsetSystemZoneFallback(t *testing.T) {
	resolver := NewResolver()

	got, err := resolver.ResolveOffset("Europe/Paris", time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 60, got)

	got, err = resolver.ResolveOffset("Europe/Paris", time.Date(2023, time.July, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 120, got)
}

func TestResolveOffsetUnknownZone(t *testing.T) {
	resolver := NewResolver()
	_, err := resolver.ResolveOffset("Nowhere/Invalid", time.Now())
	assert.ErrorIs(t, err, ErrTimezoneNotFound)
	assert.Contains(t, err.Error(), "Nowhere/Invalid")
}

func TestResolveOffsetNoObservances(t *testing.T) {
	resolver := NewResolver()
	resolver.AddZone("Broken/Zone", nil)
	_, err := resolver.ResolveOffset("Broken/Zone", time.Now())
	assert.ErrorIs(t, err, ErrNoObservances)
}

func TestTimelineCacheSharedByContent(t *testing.T) {
	resolver := NewResolver()
	observances := newYorkObservances(t)
	resolver.AddZone("America/New_York", observances)
	resolver.AddZone("US/Eastern", observances)

	local := time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC)
	_, err := resolver.ResolveOffset("America/New_York", local)
	require.NoError(t, err)
	_, err = resolver.ResolveOffset("US/Eastern", local)
	require.NoError(t, err)

	// Identical observance content builds one timeline, whatever the TZID.
	resolver.mu.Lock()
	assert.Len(t, resolver.cache, 1)
	resolver.mu.Unlock()
}

func TestResolveOffsetConcurrent(t *testing.T) {
	resolver := newYorkResolver(t)
	local := time.Date(2023, time.June, 10, 14, 45, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			offset, err := resolver.ResolveOffset("America/New_York", local)
			assert.NoError(t, err)
			assert.Equal(t, -240, offset)
		}()
	}
	wg.Wait()
}

func TestResolverHorizonBoundsTimeline(t *testing.T) {
	horizon := time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
	resolver := NewResolverWithConfig(ResolverConfig{Horizon: horizon})
	resolver.AddZone("America/New_York", newYorkObservances(t))

	// 2023 lies past the horizon; the last expanded offset regime (standard
	// time as of November 2009) answers.
	got, err := resolver.ResolveOffset("America/New_York", time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, -300, got)
}
