package core

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MonthEndToken is the canonical spelling of the month-end sentinel.
const MonthEndToken = "month-end"

// DayToken is a billing day: either a literal day of month (1..31) or the
// month-end sentinel. The zero value is invalid.
type DayToken struct {
	day      int
	monthEnd bool
}

// MonthEnd is the month-end sentinel.
var MonthEnd = DayToken{monthEnd: true}

// Literal returns a literal day token. Validity is checked by Validate.
func Literal(day int) DayToken {
	return DayToken{day: day}
}

var monthEndAliases = map[string]struct{}{
	MonthEndToken: {},
	"end":         {},
	"last":        {},
	"eom":         {},
}

// ParseDayToken parses the textual form of a billing day token. It checks the
// syntax and the 1..31 range; binding to a concrete month is the calendar's job.
func ParseDayToken(s string) (DayToken, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if _, ok := monthEndAliases[raw]; ok {
		return MonthEnd, nil
	}
	day, err := strconv.Atoi(raw)
	if err != nil {
		return DayToken{}, &DayTokenError{Token: s, Reason: "not a day number or month-end sentinel"}
	}
	tok := Literal(day)
	if err := tok.Validate(); err != nil {
		return DayToken{}, &DayTokenError{Token: s, Reason: "day out of range 1..31"}
	}
	return tok, nil
}

// IsMonthEnd reports whether t is the month-end sentinel.
func (t DayToken) IsMonthEnd() bool {
	return t.monthEnd
}

// Day returns the literal day, or 0 for the sentinel.
func (t DayToken) Day() int {
	if t.monthEnd {
		return 0
	}
	return t.day
}

func (t DayToken) IsZero() bool {
	return !t.monthEnd && t.day == 0
}

func (t DayToken) Validate() error {
	if t.monthEnd {
		return nil
	}
	if t.day < 1 || t.day > 31 {
		return &DayTokenError{Token: strconv.Itoa(t.day), Reason: "day out of range 1..31"}
	}
	return nil
}

func (t DayToken) String() string {
	if t.monthEnd {
		return MonthEndToken
	}
	return strconv.Itoa(t.day)
}

func (t DayToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts both "10" / "month-end" strings and bare numbers.
func (t *DayToken) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return &DayTokenError{Token: string(b), Reason: "not a string or number"}
		}
		s = strconv.Itoa(n)
	}
	parsed, err := ParseDayToken(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
