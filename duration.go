package recur

import (
	"fmt"
	"strconv"
	"time"
)

// ParseDuration decodes an RFC 5545 section 3.3.6 dur-value such as "PT1H",
// "-PT15M", "P2DT3H" or "P4W" into a time.Duration.  Weeks and days are
// nominal 7*24h and 24h spans; daylight-saving adjustment of an occurrence's
// end happens when the caller resolves the end instant, not here.
func ParseDuration(s string) (time.Duration, error) {
	input := s
	negative := false
	switch {
	case len(s) > 0 && s[0] == '-':
		negative = true
		s = s[1:]
	case len(s) > 0 && s[0] == '+':
		s = s[1:]
	}
	if len(s) == 0 || s[0] != 'P' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	sawPart := false
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime {
				return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
			}
			inTime = true
			s = s[1:]
			continue
		}
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
		}
		unit := s[i]
		s = s[i+1:]
		sawPart = true
		switch {
		case unit == 'W' && !inTime:
			total += time.Duration(n) * 7 * 24 * time.Hour
		case unit == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case unit == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case unit == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case unit == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
		}
	}
	if !sawPart {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
	}
	if negative {
		total = -total
	}
	return total, nil
}

// ParseUTCOffset decodes a TZOFFSETFROM/TZOFFSETTO value of the form
// ±HHMM or ±HHMMSS (RFC 5545 section 3.3.14) into signed minutes east of
// UTC.  Seconds, when present, are truncated.
func ParseUTCOffset(s string) (int, error) {
	input := s
	sign := 1
	switch {
	case len(s) > 0 && s[0] == '-':
		sign = -1
		s = s[1:]
	case len(s) > 0 && s[0] == '+':
		s = s[1:]
	}
	if len(s) != 4 && len(s) != 6 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUTCOffset, input)
	}
	hours, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUTCOffset, input)
	}
	minutes, err := strconv.Atoi(s[2:4])
	if err != nil || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUTCOffset, input)
	}
	return sign * (hours*60 + minutes), nil
}
