package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Rule)
	}
	return out
}

func mustSlot(t *testing.T, date, start, end string) Slot {
	t.Helper()
	s, err := ParseSlot(date, start, end)
	require.NoError(t, err)
	return s
}

func TestValidateRejectsNonPositiveRangeEverywhere(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	future := Date{2024, time.June, 16}

	for s := TimeOfDay(0); s < 24*60; s += 15 {
		for e := TimeOfDay(0); e < 24*60; e += 15 {
			vs := Validate(Slot{Date: future, Start: s, End: e}, now)
			if s >= e {
				assert.Contains(t, rules(vs), RuleInvalidRange, "start=%s end=%s", s, e)
			} else {
				assert.Empty(t, vs, "start=%s end=%s", s, e)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name  string
		date  string
		start string
		end   string
		want  []string
	}{
		{"future slot", "2024-06-16", "09:00", "10:00", nil},
		{"equal bounds", "2024-06-16", "09:00", "09:00", []string{RuleInvalidRange}},
		{"end before start", "2024-06-16", "11:00", "10:00", []string{RuleInvalidRange}},
		{"past date", "2024-01-01", "09:00", "10:00", []string{RulePastDate}},
		{"yesterday late evening", "2024-06-14", "23:00", "23:59", []string{RulePastDate}},
		{"past date and bad range", "2024-01-01", "10:00", "09:00", []string{RuleInvalidRange, RulePastDate}},
		{"today already started", "2024-06-15", "09:00", "11:00", []string{RulePastStartTime}},
		{"today starting this minute", "2024-06-15", "10:30", "11:00", []string{RulePastStartTime}},
		{"today next minute", "2024-06-15", "10:31", "11:00", nil},
		{"today bad range in the past", "2024-06-15", "10:00", "09:00", []string{RuleInvalidRange, RulePastStartTime}},
		{"rfc3339 date", "2024-06-16T00:00:00Z", "09:00", "10:00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := Validate(mustSlot(t, tt.date, tt.start, tt.end), now)
			if tt.want == nil {
				assert.Empty(t, vs)
				return
			}
			assert.Equal(t, tt.want, rules(vs))
		})
	}
}

func TestValidateIgnoresZone(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC; only the wall clock of
	// now counts.
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 6, 15, 23, 30, 0, 0, loc)

	assert.Empty(t, Validate(mustSlot(t, "2024-06-15", "23:45", "23:59"), now))
	assert.Equal(t, []string{RulePastStartTime}, rules(Validate(mustSlot(t, "2024-06-15", "23:00", "23:59"), now)))
}

func TestParseSlot(t *testing.T) {
	t.Run("all missing", func(t *testing.T) {
		_, err := ParseSlot("", "", "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{
			"Date is a required field.",
			"Start time is a required field.",
			"End time is a required field.",
		}, ve.Messages())
	})

	t.Run("bad formats", func(t *testing.T) {
		_, err := ParseSlot("15/06/2024", "24:00", "9:5")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{RuleFormat, RuleFormat, RuleFormat}, rules(ve.Violations))
		assert.Equal(t, []string{FieldDate, FieldStartTime, FieldEndTime},
			[]string{ve.Violations[0].Field, ve.Violations[1].Field, ve.Violations[2].Field})
	})

	t.Run("padded values are not trimmed", func(t *testing.T) {
		_, err := ParseSlot(" 2024-06-15", " 10:00 ", "11:00\n")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{
			"Date must be a valid ISO 8601 date.",
			"Start time must be in HH:mm format.",
			"End time must be in HH:mm format.",
		}, ve.Messages())
	})

	t.Run("impossible calendar date", func(t *testing.T) {
		_, err := ParseSlot("2024-02-30", "09:00", "10:00")
		assert.True(t, IsValidation(err))
	})

	t.Run("single digit hour", func(t *testing.T) {
		s, err := ParseSlot("2024-06-15", "9:05", "23:59")
		require.NoError(t, err)
		assert.Equal(t, TimeOfDay(9*60+5), s.Start)
		assert.Equal(t, TimeOfDay(23*60+59), s.End)
		assert.Equal(t, Date{2024, time.June, 15}, s.Date)
	})
}

func TestCheck(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := Check("2024-01-01", "09:00", "10:00", now)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Please choose a date not in the past"}, ve.Messages())

	s, err := Check("2025-03-01", "08:01", "09:00", now)
	require.NoError(t, err)
	assert.Equal(t, "08:01", s.Start.String())
}
