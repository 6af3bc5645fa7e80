package recur

import (
	"errors"
)

var (
	// ErrInvalidRule is the error returned when a recurrence rule is
	// malformed: a missing FREQ, a non-positive INTERVAL, a BY* value
	// outside its RFC 5545 range, or an unknown token.  It is raised when
	// the rule is constructed, never during expansion.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrMissingDtStart is the error returned when an event has no DTSTART.
	// The event cannot be expanded; other events in the same calendar are
	// unaffected.
	ErrMissingDtStart = errors.New("event has no DTSTART")
	// ErrTimezoneNotFound is the error returned when a TZID matches neither
	// a VTIMEZONE definition registered with the resolver nor a zone known
	// to the system timezone database.  The wrapped message carries the
	// offending TZID.
	ErrTimezoneNotFound = errors.New("timezone not found")
	// ErrNoObservances is the error returned when a VTIMEZONE defines no
	// STANDARD or DAYLIGHT sub-component.  Such a zone cannot resolve any
	// local time and indicates a malformed calendar.
	ErrNoObservances = errors.New("timezone has no observances")
	// ErrInvalidDuration is the error returned for a DURATION value that
	// does not follow the RFC 5545 section 3.3.6 grammar.
	ErrInvalidDuration = errors.New("invalid duration value")
	// ErrInvalidUTCOffset is the error returned for a TZOFFSETFROM or
	// TZOFFSETTO value that does not follow the ±HHMM[SS] form.
	ErrInvalidUTCOffset = errors.New("invalid utc offset value")
)
