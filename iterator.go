package recur

import (
	"sort"
	"time"
)

// RuleIterator lazily walks the instants a recurrence rule generates from a
// series start.  Candidates are produced one FREQ period at a time, so the
// memory held is bounded by the size of a single period regardless of how
// long the series runs.  Iteration ends when COUNT is exhausted, UNTIL is
// passed, or the range end given at construction is passed, whichever comes
// first.  An iterator is single-use; construct a new one to restart, and two
// iterators built from the same inputs yield the same sequence.
type RuleIterator struct {
	dtstart  time.Time
	rule     RecurrenceRule
	rangeEnd time.Time
	loc      *time.Location

	anchor  time.Time // start of the current period
	limit   time.Time // min(rangeEnd, UNTIL), bounds the period walk
	buf     []time.Time
	idx     int
	yielded int
	last    time.Time
	done    bool
}

// periodSlack covers candidates that precede their period anchor, which
// happens when an ISO week of YEARLY BYWEEKNO spills into the previous
// calendar year.
const periodSlack = 7 * 24 * time.Hour

// NewRuleIterator validates rule and returns an iterator over the instants
// it generates from dtstart up to rangeEnd inclusive.  Candidates keep
// dtstart's location and sub-second precision; fields absent from the rule's
// BY* parts default to the corresponding dtstart field.
func NewRuleIterator(dtstart time.Time, rule *RecurrenceRule, rangeEnd time.Time) (*RuleIterator, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	it := &RuleIterator{
		dtstart:  dtstart,
		rule:     *rule,
		rangeEnd: rangeEnd,
		loc:      dtstart.Location(),
		limit:    rangeEnd,
	}
	if rule.Until != nil && rule.Until.Before(it.limit) {
		it.limit = *rule.Until
	}
	if rule.HasCount && rule.Count == 0 {
		it.done = true
		return it, nil
	}
	it.anchor = it.initialAnchor()
	it.fill()
	return it, nil
}

// ExpandRule drains a new iterator into a slice.  Prefer the iterator for
// long series; this helper exists for callers that want the whole bounded
// set at once.
func ExpandRule(dtstart time.Time, rule *RecurrenceRule, rangeEnd time.Time) ([]time.Time, error) {
	it, err := NewRuleIterator(dtstart, rule, rangeEnd)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for {
		t, ok := it.Next()
		if !ok {
			return out, nil
		}
		out = append(out, t)
	}
}

// Next returns the next instant of the series in ascending order.  The
// second return is false once the series is exhausted.
func (it *RuleIterator) Next() (time.Time, bool) {
	for !it.done {
		if it.rule.HasCount && it.yielded >= it.rule.Count {
			it.done = true
			break
		}
		for it.idx < len(it.buf) {
			cand := it.buf[it.idx]
			it.idx++
			if cand.Before(it.dtstart) {
				continue
			}
			if !it.last.IsZero() && !cand.After(it.last) {
				continue
			}
			if it.rule.Until != nil && cand.After(*it.rule.Until) {
				continue
			}
			if cand.After(it.rangeEnd) {
				continue
			}
			it.yielded++
			it.last = cand
			return cand, true
		}
		it.advance()
	}
	return time.Time{}, false
}

func (it *RuleIterator) initialAnchor() time.Time {
	d := it.dtstart
	switch it.rule.Frequency {
	case FrequencyYearly:
		return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, it.loc)
	case FrequencyMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, it.loc)
	case FrequencyWeekly:
		return it.weekStartOf(time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, it.loc))
	case FrequencyDaily:
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, it.loc)
	default:
		return d
	}
}

// advance steps the anchor forward by INTERVAL periods and refills the
// candidate buffer, marking the iterator done once the anchor passes the
// bounding limit.
func (it *RuleIterator) advance() {
	interval := it.rule.interval()
	switch it.rule.Frequency {
	case FrequencyYearly:
		it.anchor = it.anchor.AddDate(interval, 0, 0)
	case FrequencyMonthly:
		it.anchor = it.anchor.AddDate(0, interval, 0)
	case FrequencyWeekly:
		it.anchor = it.anchor.AddDate(0, 0, 7*interval)
	case FrequencyDaily:
		it.anchor = it.anchor.AddDate(0, 0, interval)
	case FrequencyHourly:
		it.anchor = it.anchor.Add(time.Duration(interval) * time.Hour)
	case FrequencyMinutely:
		it.anchor = it.anchor.Add(time.Duration(interval) * time.Minute)
	case FrequencySecondly:
		it.anchor = it.anchor.Add(time.Duration(interval) * time.Second)
	}
	it.fill()
}

func (it *RuleIterator) fill() {
	if it.anchor.After(it.limit.Add(periodSlack)) {
		it.done = true
		return
	}
	it.buf = it.periodCandidates()
	it.idx = 0
}

// periodCandidates generates the sorted, deduplicated candidate set of the
// period the anchor points at, with BYSETPOS applied.
func (it *RuleIterator) periodCandidates() []time.Time {
	var cands []time.Time
	switch it.rule.Frequency {
	case FrequencyYearly:
		cands = it.expandClock(it.yearDays())
	case FrequencyMonthly:
		cands = it.expandClock(it.monthPeriodDays())
	case FrequencyWeekly:
		cands = it.expandClock(it.weekDays())
	case FrequencyDaily:
		if it.dayWanted(it.anchor) {
			cands = it.expandClock([]time.Time{it.anchor})
		}
	default:
		cands = it.subDailyCandidates()
	}
	cands = sortAndDedupe(cands)
	if len(it.rule.BySetPos) > 0 {
		cands = selectSetPos(cands, it.rule.BySetPos)
	}
	return cands
}

// yearDays selects the candidate days of the anchor's calendar year.
func (it *RuleIterator) yearDays() []time.Time {
	rule := &it.rule
	year := it.anchor.Year()
	var days []time.Time
	switch {
	case len(rule.ByWeekNo) > 0:
		total := isoWeeksInYear(year)
		for _, wk := range rule.ByWeekNo {
			w := wk
			if w < 0 {
				w = total + w + 1
			}
			if w < 1 || w > total {
				continue
			}
			monday := isoWeekStart(year, w, it.loc)
			for i := 0; i < 7; i++ {
				day := monday.AddDate(0, 0, i)
				if it.weekdayWanted(day.Weekday()) {
					days = append(days, day)
				}
			}
		}
		days = it.filterDays(days, true, len(rule.ByMonthDay) > 0, len(rule.ByYearDay) > 0, false)
	case len(rule.ByYearDay) > 0:
		for _, yd := range rule.ByYearDay {
			day, ok := resolveYearDay(year, yd, it.loc)
			if !ok {
				continue
			}
			days = append(days, day)
		}
		days = it.filterDays(days, true, len(rule.ByMonthDay) > 0, false, len(rule.ByDay) > 0)
	default:
		months := rule.ByMonth
		if len(months) == 0 {
			months = []int{int(it.dtstart.Month())}
		}
		for _, m := range months {
			for _, d := range it.monthDays(year, time.Month(m)) {
				days = append(days, time.Date(year, time.Month(m), d, 0, 0, 0, 0, it.loc))
			}
		}
	}
	return days
}

// monthPeriodDays selects the candidate days of the anchor's month, honoring
// a BYMONTH restriction.
func (it *RuleIterator) monthPeriodDays() []time.Time {
	year, month := it.anchor.Year(), it.anchor.Month()
	if len(it.rule.ByMonth) > 0 && !containsInt(it.rule.ByMonth, int(month)) {
		return nil
	}
	var days []time.Time
	for _, d := range it.monthDays(year, month) {
		days = append(days, time.Date(year, month, d, 0, 0, 0, 0, it.loc))
	}
	return days
}

// monthDays returns the selected days of month per the MONTHLY selection
// order: BYYEARDAY restricted to this month, else BYDAY (intersected with
// BYMONTHDAY when both are present), else BYMONTHDAY, else the series
// start's day clamped to the month length.
func (it *RuleIterator) monthDays(year int, month time.Month) []int {
	rule := &it.rule
	length := daysInMonth(year, month)
	switch {
	case len(rule.ByYearDay) > 0:
		var days []int
		for _, yd := range rule.ByYearDay {
			day, ok := resolveYearDay(year, yd, it.loc)
			if !ok || day.Month() != month {
				continue
			}
			if len(rule.ByMonthDay) > 0 && !monthDayMatches(rule.ByMonthDay, day.Day(), length) {
				continue
			}
			if len(rule.ByDay) > 0 && !it.weekdayWanted(day.Weekday()) {
				continue
			}
			days = append(days, day.Day())
		}
		return days
	case len(rule.ByDay) > 0:
		days := byDayDaysOfMonth(year, month, rule.ByDay, it.loc)
		if len(rule.ByMonthDay) > 0 {
			var both []int
			for _, d := range days {
				if monthDayMatches(rule.ByMonthDay, d, length) {
					both = append(both, d)
				}
			}
			days = both
		}
		return days
	case len(rule.ByMonthDay) > 0:
		var days []int
		for _, md := range rule.ByMonthDay {
			d := md
			if d < 0 {
				d = length + d + 1
			}
			if d >= 1 && d <= length {
				days = append(days, d)
			}
		}
		return days
	default:
		d := it.dtstart.Day()
		if d > length {
			d = length
		}
		return []int{d}
	}
}

// weekDays selects the candidate days of the WKST-anchored week at the
// anchor.
func (it *RuleIterator) weekDays() []time.Time {
	var days []time.Time
	for i := 0; i < 7; i++ {
		day := it.anchor.AddDate(0, 0, i)
		if !it.weekdayWanted(day.Weekday()) {
			continue
		}
		if len(it.rule.ByMonth) > 0 && !containsInt(it.rule.ByMonth, int(day.Month())) {
			continue
		}
		days = append(days, day)
	}
	return days
}

// subDailyCandidates handles HOURLY, MINUTELY and SECONDLY periods, where
// the anchor is itself the cursor and smaller units expand while larger
// ones restrict.
func (it *RuleIterator) subDailyCandidates() []time.Time {
	rule := &it.rule
	a := it.anchor
	if !it.dayWanted(a) {
		return nil
	}
	if len(rule.ByHour) > 0 && !containsInt(rule.ByHour, a.Hour()) {
		return nil
	}
	switch rule.Frequency {
	case FrequencyHourly:
		var cands []time.Time
		for _, m := range it.minuteSet() {
			for _, s := range it.secondSet() {
				cands = append(cands, time.Date(a.Year(), a.Month(), a.Day(), a.Hour(), m, s, a.Nanosecond(), it.loc))
			}
		}
		return cands
	case FrequencyMinutely:
		if len(rule.ByMinute) > 0 && !containsInt(rule.ByMinute, a.Minute()) {
			return nil
		}
		var cands []time.Time
		for _, s := range it.secondSet() {
			cands = append(cands, time.Date(a.Year(), a.Month(), a.Day(), a.Hour(), a.Minute(), s, a.Nanosecond(), it.loc))
		}
		return cands
	default: // SECONDLY
		if len(rule.ByMinute) > 0 && !containsInt(rule.ByMinute, a.Minute()) {
			return nil
		}
		if len(rule.BySecond) > 0 && !containsInt(rule.BySecond, a.Second()) {
			return nil
		}
		return []time.Time{a}
	}
}

// expandClock crosses each candidate day with the BYHOUR, BYMINUTE and
// BYSECOND sets, each defaulting to the series start's field.
func (it *RuleIterator) expandClock(days []time.Time) []time.Time {
	hours := it.hourSet()
	minutes := it.minuteSet()
	seconds := it.secondSet()
	var cands []time.Time
	for _, day := range days {
		for _, h := range hours {
			for _, m := range minutes {
				for _, s := range seconds {
					cands = append(cands, time.Date(day.Year(), day.Month(), day.Day(), h, m, s, it.dtstart.Nanosecond(), it.loc))
				}
			}
		}
	}
	return cands
}

func (it *RuleIterator) hourSet() []int {
	if len(it.rule.ByHour) > 0 {
		return sortedCopy(it.rule.ByHour)
	}
	return []int{it.dtstart.Hour()}
}

func (it *RuleIterator) minuteSet() []int {
	if len(it.rule.ByMinute) > 0 {
		return sortedCopy(it.rule.ByMinute)
	}
	return []int{it.dtstart.Minute()}
}

func (it *RuleIterator) secondSet() []int {
	if len(it.rule.BySecond) > 0 {
		return sortedCopy(it.rule.BySecond)
	}
	return []int{it.dtstart.Second()}
}

// weekdayWanted reports whether a weekday passes the BYDAY list, falling
// back to the series start's weekday when no BYDAY is present.  Ordinals
// are ignored here; they only apply to month and year scoped selection.
func (it *RuleIterator) weekdayWanted(day time.Weekday) bool {
	if len(it.rule.ByDay) == 0 {
		return day == it.dtstart.Weekday()
	}
	for _, wd := range it.rule.ByDay {
		if wd.Day == day {
			return true
		}
	}
	return false
}

// dayWanted applies the day-level restrictions of DAILY and sub-daily
// frequencies to a single day.
func (it *RuleIterator) dayWanted(day time.Time) bool {
	rule := &it.rule
	if len(rule.ByMonth) > 0 && !containsInt(rule.ByMonth, int(day.Month())) {
		return false
	}
	if len(rule.ByMonthDay) > 0 &&
		!monthDayMatches(rule.ByMonthDay, day.Day(), daysInMonth(day.Year(), day.Month())) {
		return false
	}
	if len(rule.ByYearDay) > 0 && !yearDayMatches(rule.ByYearDay, day) {
		return false
	}
	if len(rule.ByDay) > 0 && !it.weekdayWanted(day.Weekday()) {
		return false
	}
	return true
}

// filterDays applies the requested post-filters to a day set.
func (it *RuleIterator) filterDays(days []time.Time, byMonth, byMonthDay, byYearDay, byDay bool) []time.Time {
	rule := &it.rule
	var out []time.Time
	for _, day := range days {
		if byMonth && len(rule.ByMonth) > 0 && !containsInt(rule.ByMonth, int(day.Month())) {
			continue
		}
		if byMonthDay && !monthDayMatches(rule.ByMonthDay, day.Day(), daysInMonth(day.Year(), day.Month())) {
			continue
		}
		if byYearDay && !yearDayMatches(rule.ByYearDay, day) {
			continue
		}
		if byDay && !it.weekdayWanted(day.Weekday()) {
			continue
		}
		out = append(out, day)
	}
	return out
}

func (it *RuleIterator) weekStartOf(day time.Time) time.Time {
	back := (int(day.Weekday()) - int(it.rule.weekStart()) + 7) % 7
	return day.AddDate(0, 0, -back)
}

// selectSetPos picks the 1-based (negative meaning from the end) positions
// from a sorted period set.
func selectSetPos(cands []time.Time, positions []int) []time.Time {
	var out []time.Time
	for _, pos := range positions {
		i := pos
		if i < 0 {
			i = len(cands) + i + 1
		}
		if i >= 1 && i <= len(cands) {
			out = append(out, cands[i-1])
		}
	}
	return sortAndDedupe(out)
}

func sortAndDedupe(times []time.Time) []time.Time {
	if len(times) < 2 {
		return times
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	out := times[:1]
	for _, t := range times[1:] {
		if !t.Equal(out[len(out)-1]) {
			out = append(out, t)
		}
	}
	return out
}

func sortedCopy(values []int) []int {
	out := append([]int(nil), values...)
	sort.Ints(out)
	return out
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// monthDayMatches reports whether day-of-month d matches a BYMONTHDAY list,
// resolving negative entries against the month length.
func monthDayMatches(byMonthDay []int, d, monthLength int) bool {
	for _, md := range byMonthDay {
		r := md
		if r < 0 {
			r = monthLength + r + 1
		}
		if r == d {
			return true
		}
	}
	return false
}

func yearDayMatches(byYearDay []int, day time.Time) bool {
	length := 365
	if isLeapYear(day.Year()) {
		length = 366
	}
	for _, yd := range byYearDay {
		r := yd
		if r < 0 {
			r = length + r + 1
		}
		if r == day.YearDay() {
			return true
		}
	}
	return false
}

// resolveYearDay turns a BYYEARDAY entry into a concrete date, reporting
// false for days that do not exist in the year (day 366 of a common year).
func resolveYearDay(year, yd int, loc *time.Location) (time.Time, bool) {
	length := 365
	if isLeapYear(year) {
		length = 366
	}
	d := yd
	if d < 0 {
		d = length + d + 1
	}
	if d < 1 || d > length {
		return time.Time{}, false
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, loc).AddDate(0, 0, d-1), true
}

// byDayDaysOfMonth resolves a BYDAY list within one month: a bare weekday
// selects every matching day, a positive ordinal the Nth matching day, a
// negative ordinal the Nth counting back from the month's end.
func byDayDaysOfMonth(year int, month time.Month, byDay []WeekdayNum, loc *time.Location) []int {
	length := daysInMonth(year, month)
	var matching = map[time.Weekday][]int{}
	for d := 1; d <= length; d++ {
		wd := time.Date(year, month, d, 0, 0, 0, 0, loc).Weekday()
		matching[wd] = append(matching[wd], d)
	}
	var days []int
	for _, entry := range byDay {
		all := matching[entry.Day]
		switch {
		case entry.Ord == 0:
			days = append(days, all...)
		case entry.Ord > 0 && entry.Ord <= len(all):
			days = append(days, all[entry.Ord-1])
		case entry.Ord < 0 && -entry.Ord <= len(all):
			days = append(days, all[len(all)+entry.Ord])
		}
	}
	sort.Ints(days)
	return days
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// isoWeekStart returns the Monday of ISO week w of the given week-numbering
// year.  January 4 always falls in week 1.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	mondayOffset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -mondayOffset+7*(week-1))
}

// isoWeeksInYear returns 52 or 53: December 28 always falls in the last ISO
// week of its year.
func isoWeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}
