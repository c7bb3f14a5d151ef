package calendar

import "payplan/internal/core"

// ResolveDay binds a textual day token to a concrete day of the given month.
// Literal days past the end of the month are clamped to its last day.
func ResolveDay(token string, year, month int) (int, error) {
	tok, err := core.ParseDayToken(token)
	if err != nil {
		return 0, err
	}
	return Resolve(tok, year, month)
}

// Resolve binds a parsed day token to a concrete day of the given month.
func Resolve(tok core.DayToken, year, month int) (int, error) {
	if err := tok.Validate(); err != nil {
		return 0, err
	}
	last := DaysInMonth(year, month)
	if tok.IsMonthEnd() || tok.Day() > last {
		return last, nil
	}
	return tok.Day(), nil
}

// ResolveDate is Resolve returning the full date.
func ResolveDate(tok core.DayToken, year, month int) (core.Date, error) {
	day, err := Resolve(tok, year, month)
	if err != nil {
		return core.Date{}, err
	}
	return core.NewDate(year, month, day), nil
}
