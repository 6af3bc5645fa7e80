package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency enumerates the FREQ values defined in RFC 5545 section 3.3.10.
type Frequency string

const (
	// FrequencySecondly repeats every INTERVAL seconds.
	FrequencySecondly Frequency = "SECONDLY"
	// FrequencyMinutely repeats every INTERVAL minutes.
	FrequencyMinutely Frequency = "MINUTELY"
	// FrequencyHourly repeats every INTERVAL hours.
	FrequencyHourly Frequency = "HOURLY"
	// FrequencyDaily repeats every INTERVAL days.
	FrequencyDaily Frequency = "DAILY"
	// FrequencyWeekly repeats every INTERVAL weeks.
	FrequencyWeekly Frequency = "WEEKLY"
	// FrequencyMonthly repeats every INTERVAL months.
	FrequencyMonthly Frequency = "MONTHLY"
	// FrequencyYearly repeats every INTERVAL years.
	FrequencyYearly Frequency = "YEARLY"
)

// WeekdayNum is one entry of a BYDAY list (RFC 5545 section 3.3.10): a
// weekday optionally qualified by an ordinal.  Ord is zero for a bare
// weekday ("MO"), positive for the Nth such weekday within the period
// ("2SU") and negative counting from the period's end ("-1FR").
type WeekdayNum struct {
	Ord int
	Day time.Weekday
}

// RecurrenceRule is a validated RRULE value (RFC 5545 section 3.8.5.3).
// Construct one with ParseRule or build it directly and call Validate; the
// expansion entry points validate before generating anything.  A zero Count
// and nil Until mean the rule is unbounded and is limited only by the range
// passed to expansion.
type RecurrenceRule struct {
	Frequency Frequency
	// Interval is the gap between periods.  Zero means the default of 1.
	Interval int
	// Count limits the total number of generated instants.  Zero means no
	// COUNT part was given.
	Count int
	// HasCount distinguishes COUNT=0, which yields nothing, from an absent
	// COUNT part.
	HasCount bool
	// Until is the inclusive end of the series, or nil.
	Until *time.Time
	// WeekStart anchors WEEKLY period boundaries.  Defaults to Monday per
	// RFC 5545 when no WKST part was given.
	WeekStart *time.Weekday

	ByDay      []WeekdayNum
	ByMonth    []int
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByHour     []int
	ByMinute   []int
	BySecond   []int
	BySetPos   []int
}

const (
	icalTimestampFormatUtc   = "20060102T150405Z"
	icalTimestampFormatLocal = "20060102T150405"
	icalDateFormatLocal      = "20060102"
)

var weekdayTokens = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// ParseRule decodes a recur-value string such as
// "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=10" into a validated RecurrenceRule.  The
// input is the raw RRULE property value with any leading "RRULE:" already
// stripped by the property layer.  Any malformed or out-of-range part
// returns an error wrapping ErrInvalidRule.
func ParseRule(s string) (*RecurrenceRule, error) {
	rule := &RecurrenceRule{}
	seen := map[string]bool{}
	for _, part := range strings.Split(strings.TrimSpace(s), ";") {
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return nil, fmt.Errorf("%w: malformed part %q", ErrInvalidRule, part)
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		if seen[name] {
			return nil, fmt.Errorf("%w: repeated part %q", ErrInvalidRule, name)
		}
		seen[name] = true

		var err error
		switch name {
		case "FREQ":
			rule.Frequency = Frequency(strings.ToUpper(value))
		case "INTERVAL":
			rule.Interval, err = strconv.Atoi(value)
		case "COUNT":
			rule.Count, err = strconv.Atoi(value)
			rule.HasCount = true
		case "UNTIL":
			var until time.Time
			until, err = parseRuleUntil(value)
			rule.Until = &until
		case "WKST":
			day, ok := weekdayTokens[strings.ToUpper(value)]
			if !ok {
				return nil, fmt.Errorf("%w: unknown WKST %q", ErrInvalidRule, value)
			}
			rule.WeekStart = &day
		case "BYDAY":
			rule.ByDay, err = parseByDayList(value)
		case "BYMONTH":
			rule.ByMonth, err = parseIntList(value)
		case "BYMONTHDAY":
			rule.ByMonthDay, err = parseIntList(value)
		case "BYYEARDAY":
			rule.ByYearDay, err = parseIntList(value)
		case "BYWEEKNO":
			rule.ByWeekNo, err = parseIntList(value)
		case "BYHOUR":
			rule.ByHour, err = parseIntList(value)
		case "BYMINUTE":
			rule.ByMinute, err = parseIntList(value)
		case "BYSECOND":
			rule.BySecond, err = parseIntList(value)
		case "BYSETPOS":
			rule.BySetPos, err = parseIntList(value)
		default:
			return nil, fmt.Errorf("%w: unknown part %q", ErrInvalidRule, name)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, name, err)
		}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func parseRuleUntil(value string) (time.Time, error) {
	for _, layout := range []string{icalTimestampFormatUtc, icalTimestampFormatLocal, icalDateFormatLocal} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date-time %q", value)
}

func parseIntList(value string) ([]int, error) {
	var out []int
	for _, item := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseByDayList(value string) ([]WeekdayNum, error) {
	var out []WeekdayNum
	for _, item := range strings.Split(value, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if len(item) < 2 {
			return nil, fmt.Errorf("malformed weekday %q", item)
		}
		dayToken := item[len(item)-2:]
		day, ok := weekdayTokens[dayToken]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", dayToken)
		}
		entry := WeekdayNum{Day: day}
		if ordPart := item[:len(item)-2]; ordPart != "" {
			ord, err := strconv.Atoi(ordPart)
			if err != nil {
				return nil, fmt.Errorf("malformed ordinal in %q", item)
			}
			entry.Ord = ord
		}
		out = append(out, entry)
	}
	return out, nil
}

// Validate checks every field against its RFC 5545 range.  It returns an
// error wrapping ErrInvalidRule on the first violation, before any
// expansion work happens.
func (rule *RecurrenceRule) Validate() error {
	switch rule.Frequency {
	case FrequencySecondly, FrequencyMinutely, FrequencyHourly, FrequencyDaily,
		FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	case "":
		return fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	default:
		return fmt.Errorf("%w: unknown FREQ %q", ErrInvalidRule, rule.Frequency)
	}
	if rule.Interval < 0 {
		return fmt.Errorf("%w: INTERVAL must be positive, got %d", ErrInvalidRule, rule.Interval)
	}
	if rule.Count < 0 {
		return fmt.Errorf("%w: COUNT must not be negative, got %d", ErrInvalidRule, rule.Count)
	}
	checks := []struct {
		name     string
		values   []int
		min, max int
		zeroOk   bool
	}{
		{"BYMONTH", rule.ByMonth, 1, 12, false},
		{"BYMONTHDAY", rule.ByMonthDay, -31, 31, false},
		{"BYYEARDAY", rule.ByYearDay, -366, 366, false},
		{"BYWEEKNO", rule.ByWeekNo, -53, 53, false},
		{"BYHOUR", rule.ByHour, 0, 23, true},
		{"BYMINUTE", rule.ByMinute, 0, 59, true},
		{"BYSECOND", rule.BySecond, 0, 60, true},
		{"BYSETPOS", rule.BySetPos, -366, 366, false},
	}
	for _, check := range checks {
		for _, v := range check.values {
			if v < check.min || v > check.max || (v == 0 && !check.zeroOk) {
				return fmt.Errorf("%w: %s value %d out of range", ErrInvalidRule, check.name, v)
			}
		}
	}
	for _, wd := range rule.ByDay {
		if wd.Ord < -53 || wd.Ord > 53 {
			return fmt.Errorf("%w: BYDAY ordinal %d out of range", ErrInvalidRule, wd.Ord)
		}
	}
	return nil
}

// interval returns the effective INTERVAL with the default of 1 applied.
func (rule *RecurrenceRule) interval() int {
	if rule.Interval == 0 {
		return 1
	}
	return rule.Interval
}

// weekStart returns the effective WKST with the RFC 5545 default of Monday
// applied.
func (rule *RecurrenceRule) weekStart() time.Weekday {
	if rule.WeekStart == nil {
		return time.Monday
	}
	return *rule.WeekStart
}

// String renders the rule back into recur-value form with the parts in a
// fixed order.  Only set parts are rendered, so a parsed rule may not
// round-trip byte for byte.
func (rule *RecurrenceRule) String() string {
	parts := []string{"FREQ=" + string(rule.Frequency)}
	if rule.Interval > 0 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(rule.Interval))
	}
	if rule.HasCount {
		parts = append(parts, "COUNT="+strconv.Itoa(rule.Count))
	}
	if rule.Until != nil {
		parts = append(parts, "UNTIL="+rule.Until.UTC().Format(icalTimestampFormatUtc))
	}
	if rule.WeekStart != nil {
		parts = append(parts, "WKST="+weekdayToken(*rule.WeekStart))
	}
	if len(rule.ByDay) > 0 {
		var days []string
		for _, wd := range rule.ByDay {
			token := weekdayToken(wd.Day)
			if wd.Ord != 0 {
				token = strconv.Itoa(wd.Ord) + token
			}
			days = append(days, token)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	for _, numeric := range []struct {
		name   string
		values []int
	}{
		{"BYMONTH", rule.ByMonth},
		{"BYMONTHDAY", rule.ByMonthDay},
		{"BYYEARDAY", rule.ByYearDay},
		{"BYWEEKNO", rule.ByWeekNo},
		{"BYHOUR", rule.ByHour},
		{"BYMINUTE", rule.ByMinute},
		{"BYSECOND", rule.BySecond},
		{"BYSETPOS", rule.BySetPos},
	} {
		if len(numeric.values) == 0 {
			continue
		}
		var items []string
		for _, v := range numeric.values {
			items = append(items, strconv.Itoa(v))
		}
		parts = append(parts, numeric.name+"="+strings.Join(items, ","))
	}
	return strings.Join(parts, ";")
}

func weekdayToken(day time.Weekday) string {
	for token, wd := range weekdayTokens {
		if wd == day {
			return token
		}
	}
	return ""
}
