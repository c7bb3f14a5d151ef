package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDayToken(t *testing.T) {
	cases := []struct {
		in       string
		monthEnd bool
		day      int
		ok       bool
	}{
		{"1", false, 1, true},
		{"31", false, 31, true},
		{" 10 ", false, 10, true},
		{"month-end", true, 0, true},
		{"MONTH-END", true, 0, true},
		{"last", true, 0, true},
		{"eom", true, 0, true},
		{"0", false, 0, false},
		{"32", false, 0, false},
		{"-3", false, 0, false},
		{"tenth", false, 0, false},
		{"", false, 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDayToken(tc.in)
		if !tc.ok {
			if !errors.Is(err, ErrInvalidDayToken) {
				t.Fatalf("%q expected ErrInvalidDayToken, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q unexpected error %v", tc.in, err)
		}
		if got.IsMonthEnd() != tc.monthEnd || got.Day() != tc.day {
			t.Fatalf("%q = %+v", tc.in, got)
		}
	}
}

func TestDayTokenZeroValueIsInvalid(t *testing.T) {
	var tok DayToken
	if !tok.IsZero() {
		t.Fatalf("zero token should report IsZero")
	}
	if err := tok.Validate(); !errors.Is(err, ErrInvalidDayToken) {
		t.Fatalf("zero token should be invalid, got %v", err)
	}
}

func TestDayTokenJSON(t *testing.T) {
	type cfg struct {
		Closing DayToken `json:"closing"`
		Payment DayToken `json:"payment"`
	}
	b, err := json.Marshal(cfg{Closing: Literal(10), Payment: MonthEnd})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"closing":"10","payment":"month-end"}` {
		t.Fatalf("marshal = %s", b)
	}

	var c cfg
	if err := json.Unmarshal([]byte(`{"closing":25,"payment":"end"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Closing != Literal(25) || c.Payment != MonthEnd {
		t.Fatalf("unmarshal = %+v", c)
	}
	if err := json.Unmarshal([]byte(`{"closing":"40"}`), &c); !errors.Is(err, ErrInvalidDayToken) {
		t.Fatalf("expected ErrInvalidDayToken, got %v", err)
	}
}
