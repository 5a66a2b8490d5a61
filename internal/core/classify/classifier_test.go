package classify

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"MTT Модуль 2", "MTT2"},
		{"МТТ модуль 3", "MTT3"},
		{"MTT Module 4", "MTT4"},
		{"SPIN 2 стратегия", "SPIN2"},
		{"Кэш игра", "CASH1"},
		{"CASH продвинутый", "CASH3"},
		{"SPIN beginner", "SPIN1"},
		{"МТТ PRO", "MTT4"},
		{"MTT второй уровень", "MTT2"},
		{"MTT", "MTT1"},
		{"Шахматы для начинающих", ""},
		{"", ""},
		{"просто текст", ""},
	}

	c := New()
	for _, tc := range cases {
		if got := c.Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestClassifyExplicitModuleBeatsBareInteger(t *testing.T) {
	// "10" appears before "Модуль 2" left to right, but the explicit
	// module marker has priority.
	c := New()
	if got := c.Classify("MTT 10 лет, Модуль 2"); got != "MTT2" {
		t.Errorf("got %q, want MTT2", got)
	}
}

func TestClassifyIsMemoized(t *testing.T) {
	c := New()
	first := c.Classify("MTT Модуль 2")
	second := c.Classify("MTT Модуль 2")
	if first != second || first != "MTT2" {
		t.Fatalf("memoized results differ: %q vs %q", first, second)
	}
	c.mu.RLock()
	_, cached := c.cache["MTT Модуль 2"]
	c.mu.RUnlock()
	if !cached {
		t.Error("result was not cached")
	}
}

func TestParseCourseMap(t *testing.T) {
	c := New()
	items := []any{
		map[string][]string{
			"MTT Course 1": {"Модуль 1 Урок 1", "Модуль 1 Урок 2"},
		},
	}
	tags, lessons := c.Parse(items)
	if tags != "MTT1" {
		t.Errorf("tags = %q, want MTT1", tags)
	}
	want := "Модуль 1 Урок 1\nМодуль 1 Урок 2"
	if lessons != want {
		t.Errorf("lessons = %q, want %q", lessons, want)
	}
}

func TestParseBareStrings(t *testing.T) {
	c := New()
	items := []any{
		"SPIN Модуль 2",  // tag + lesson marker → both outputs
		"общая рассылка", // neither
		nil,
	}
	tags, lessons := c.Parse(items)
	if tags != "SPIN2" {
		t.Errorf("tags = %q, want SPIN2", tags)
	}
	if lessons != "SPIN Модуль 2" {
		t.Errorf("lessons = %q, want the marked string only", lessons)
	}
}

func TestParseTagsSortedAndDeduplicated(t *testing.T) {
	c := New()
	items := []any{
		"SPIN Модуль 1",
		"CASH Модуль 2",
		"MTT Модуль 1",
		"MTT Модуль 1", // duplicate
	}
	tags, _ := c.Parse(items)
	if tags != "CASH2\nMTT1\nSPIN1" {
		t.Errorf("tags = %q, want lexicographic unique set", tags)
	}
}

func TestParseLessonsSortedByModuleAndLesson(t *testing.T) {
	c := New()
	items := []any{
		map[string][]string{
			"MTT Course": {
				"MTT Модуль 2 Урок 1",
				"MTT Модуль 1 Урок 10",
				"MTT Модуль 1 Урок 2",
			},
		},
	}
	_, lessons := c.Parse(items)
	want := "MTT Модуль 1 Урок 2\nMTT Модуль 1 Урок 10\nMTT Модуль 2 Урок 1"
	if lessons != want {
		t.Errorf("lessons order = %q, want %q", lessons, want)
	}
}

func TestParseUnknownFamilySortsLast(t *testing.T) {
	c := New()
	items := []any{
		map[string][]string{
			"Mixed": {
				"Общий Модуль 1 Урок 1",
				"MTT Модуль 1 Урок 1",
			},
		},
	}
	_, lessons := c.Parse(items)
	lines := strings.Split(lessons, "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "MTT") {
		t.Errorf("known family should sort first, got %q", lessons)
	}
}

func TestParseLongListKeepsHeadAndTail(t *testing.T) {
	// Enough long entries to exceed the character ceiling and the count
	// threshold, so the windowed truncation applies.
	filler := strings.Repeat("х", 800)
	var entries []string
	for i := 1; i <= 100; i++ {
		entries = append(entries, fmt.Sprintf("MTT Модуль 1 Урок %d %s", i, filler))
	}
	c := New()
	_, lessons := c.Parse([]any{map[string][]string{"MTT": entries}})

	if !strings.Contains(lessons, "[40 lessons skipped]") {
		t.Errorf("expected skip marker for 100-60 dropped lessons, got tail %q", lessons[:120])
	}
	if !strings.Contains(lessons, "Урок 1 ") {
		t.Error("head window missing")
	}
	if !strings.HasSuffix(lessons, "Урок 100 "+filler) {
		t.Error("tail window missing")
	}
}

func TestParseShortOversizedListHardTruncates(t *testing.T) {
	// Few entries but each enormous: under the count threshold, over the
	// character ceiling → hard cut with marker.
	huge := "MTT Модуль 1 Урок 1 " + strings.Repeat("о", 50000)
	c := New()
	_, lessons := c.Parse([]any{map[string][]string{"MTT": {huge}}})

	if !strings.HasSuffix(lessons, "[TRUNCATED]") {
		t.Error("expected hard-truncation marker")
	}
	if utf8.RuneCountInString(lessons) > 45000+len("\n[TRUNCATED]") {
		t.Errorf("output length %d exceeds ceiling", utf8.RuneCountInString(lessons))
	}
}
