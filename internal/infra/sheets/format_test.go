package sheets

import (
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "TRUE"},
		{false, "FALSE"},
		{ts, "2025-06-01 12:30:00"},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{int64(42), "42"},
		{3.5, "3.5"},
	}
	for _, tc := range cases {
		if got := FormatValue(tc.in); got != tc.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestColumnIndex(t *testing.T) {
	cases := map[string]int{
		"A":  1,
		"R":  18,
		"X":  24,
		"Z":  26,
		"AA": 27,
		"AZ": 52,
		"x":  24, // case-insensitive
	}
	for letters, want := range cases {
		if got := ColumnIndex(letters); got != want {
			t.Errorf("ColumnIndex(%q) = %d, want %d", letters, got, want)
		}
	}
}

func TestColumnLetterRoundTrip(t *testing.T) {
	for i := 1; i <= 200; i++ {
		letters := ColumnLetter(i)
		if got := ColumnIndex(letters); got != i {
			t.Errorf("round trip %d → %q → %d", i, letters, got)
		}
	}
}

func TestRangeHelpers(t *testing.T) {
	if got := RangeEnd("A:X"); got != "X" {
		t.Errorf("RangeEnd = %q, want X", got)
	}
	if got := RangeStart("A:X"); got != "A" {
		t.Errorf("RangeStart = %q, want A", got)
	}
	if got := SpanWidth("A:R"); got != 18 {
		t.Errorf("SpanWidth = %d, want 18", got)
	}
	if got := RangeEnd("X"); got != "X" {
		t.Errorf("RangeEnd without colon = %q, want X", got)
	}
}
