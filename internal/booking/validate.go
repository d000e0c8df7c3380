package booking

import (
	"time"
)

// Rule names carried by a Violation.
const (
	RuleRequired      = "required"
	RuleFormat        = "format"
	RuleInvalidRange  = "invalid_range"
	RulePastDate      = "past_date"
	RulePastStartTime = "past_start_time"
)

// Field names as they appear in request bodies.
const (
	FieldDate      = "date"
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
)

// Violation is a single failed rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Slot is a candidate or stored interval [Start, End) on Date.
type Slot struct {
	Date  Date
	Start TimeOfDay
	End   TimeOfDay
}

// ParseSlot checks presence and format of the three raw fields and builds a
// Slot from them.  Values are matched as sent: surrounding whitespace is a
// format error.  All problems are reported together as a *ValidationError.
func ParseSlot(date, start, end string) (Slot, error) {
	var (
		s   Slot
		vs  []Violation
		err error
	)
	switch {
	case date == "":
		vs = append(vs, Violation{FieldDate, RuleRequired, "Date is a required field."})
	default:
		if s.Date, err = ParseDate(date); err != nil {
			vs = append(vs, Violation{FieldDate, RuleFormat, "Date must be a valid ISO 8601 date."})
		}
	}
	switch {
	case start == "":
		vs = append(vs, Violation{FieldStartTime, RuleRequired, "Start time is a required field."})
	default:
		if s.Start, err = ParseTimeOfDay(start); err != nil {
			vs = append(vs, Violation{FieldStartTime, RuleFormat, "Start time must be in HH:mm format."})
		}
	}
	switch {
	case end == "":
		vs = append(vs, Violation{FieldEndTime, RuleRequired, "End time is a required field."})
	default:
		if s.End, err = ParseTimeOfDay(end); err != nil {
			vs = append(vs, Violation{FieldEndTime, RuleFormat, "End time must be in HH:mm format."})
		}
	}
	if len(vs) > 0 {
		return Slot{}, &ValidationError{Violations: vs}
	}
	return s, nil
}

// Validate applies the temporal rules to s relative to now.  It is pure:
// now is only ever the value passed in, and its wall clock is compared
// directly with the slot without timezone conversion.  An empty result
// means the slot is acceptable.
func Validate(s Slot, now time.Time) []Violation {
	var vs []Violation
	if s.Start >= s.End {
		vs = append(vs, Violation{FieldStartTime, RuleInvalidRange, "Start time must be earlier than end time."})
	}
	today := DateOf(now)
	switch c := s.Date.Compare(today); {
	case c < 0:
		vs = append(vs, Violation{FieldDate, RulePastDate, "Please choose a date not in the past"})
	case c == 0 && s.Start <= ClockOf(now):
		vs = append(vs, Violation{FieldStartTime, RulePastStartTime, "Booking time must be after the current time"})
	}
	return vs
}

// Check parses the raw fields and validates the resulting slot.  The error,
// when non-nil, is always a *ValidationError.
func Check(date, start, end string, now time.Time) (Slot, error) {
	s, err := ParseSlot(date, start, end)
	if err != nil {
		return Slot{}, err
	}
	if vs := Validate(s, now); len(vs) > 0 {
		return Slot{}, &ValidationError{Violations: vs}
	}
	return s, nil
}
