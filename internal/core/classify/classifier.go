// Package classify maps free-text course and lesson labels to normalized
// tags of the form <Family><Module>, e.g. "MTT2". The vocabulary seen in
// production is small and highly repetitive, so results are memoized.
package classify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// familyMarkers maps raw-text markers to their canonical family, checked in
// order. Each family has a Latin and a Cyrillic spelling.
var familyMarkers = []struct {
	Marker string
	Family string
}{
	{"MTT", "MTT"},
	{"МТТ", "MTT"},
	{"SPIN", "SPIN"},
	{"СПИН", "SPIN"},
	{"CASH", "CASH"},
	{"КЭШ", "CASH"},
	{"КЕШ", "CASH"},
}

// ordinalWords maps ordinal words and level synonyms to a module digit,
// checked in order.
var ordinalWords = []struct {
	Word  string
	Digit string
}{
	{"ПЕРВЫЙ", "1"}, {"FIRST", "1"}, {"BEGINNER", "1"}, {"НАЧИНАЮЩ", "1"}, {"ОСНОВ", "1"},
	{"ВТОРОЙ", "2"}, {"SECOND", "2"}, {"MIDDLE", "2"}, {"СРЕДН", "2"},
	{"ТРЕТИЙ", "3"}, {"THIRD", "3"}, {"ADVANCED", "3"}, {"ПРОДВИНУТ", "3"},
	{"ЧЕТВЕРТЫЙ", "4"}, {"FOURTH", "4"}, {"PRO", "4"}, {"ПРОФЕСС", "4"},
}

var (
	moduleMarkerRe = regexp.MustCompile(`(?:МОДУЛЬ|MODULE)\s*(\d+)`)
	anyNumberRe    = regexp.MustCompile(`\d+`)
	moduleNumRe    = regexp.MustCompile(`(?i)модуль\s*(\d+)`)
	lessonNumRe    = regexp.MustCompile(`(?i)урок\s*(\d+)`)
)

// Rendering limits for the lessons cell. The destination enforces a per-cell
// character ceiling; output must degrade instead of violating it.
const (
	lessonsMaxChars   = 45000
	lessonsKeepWindow = 30
	lessonsCountLimit = 60
)

// Classifier classifies free text into course tags. Safe for concurrent use.
type Classifier struct {
	mu    sync.RWMutex
	cache map[string]string
}

// New creates a Classifier with an empty memo cache.
func New() *Classifier {
	return &Classifier{cache: make(map[string]string)}
}

// Classify returns the normalized tag for text, or "" when no family marker
// is present.
func (c *Classifier) Classify(text string) string {
	if text == "" {
		return ""
	}

	c.mu.RLock()
	tag, ok := c.cache[text]
	c.mu.RUnlock()
	if ok {
		return tag
	}

	tag = classify(text)

	c.mu.Lock()
	c.cache[text] = tag
	c.mu.Unlock()
	return tag
}

func classify(text string) string {
	upper := strings.ToUpper(text)

	for _, fm := range familyMarkers {
		if !strings.Contains(upper, fm.Marker) {
			continue
		}

		// Explicit "module N" marker wins.
		if m := moduleMarkerRe.FindStringSubmatch(upper); m != nil {
			return fm.Family + m[1]
		}

		// Otherwise the first bare integer, left to right.
		if n := anyNumberRe.FindString(text); n != "" {
			return fm.Family + n
		}

		// Then ordinal words.
		for _, ow := range ordinalWords {
			if strings.Contains(upper, ow.Word) {
				return fm.Family + ow.Digit
			}
		}

		// Family marker with no module information defaults to module 1.
		return fm.Family + "1"
	}

	return ""
}

// Parse walks a heterogeneous item list of course maps (name to lessons) and
// bare strings, and renders two newline-joined cells: the sorted tag set
// and the sorted, size-bounded lesson list.
func (c *Classifier) Parse(items []any) (tags string, lessons string) {
	tagSet := make(map[string]struct{})
	var lessonList []string

	addTag := func(text string) {
		if tag := c.Classify(text); tag != "" {
			tagSet[tag] = struct{}{}
		}
	}

	for _, item := range items {
		switch v := item.(type) {
		case nil:
			continue
		case map[string][]string:
			for name, courseLessons := range v {
				addTag(name)
				for _, lesson := range courseLessons {
					if lesson == "" {
						continue
					}
					lessonList = append(lessonList, lesson)
					addTag(lesson)
				}
			}
		case string:
			addTag(v)
			if hasLessonMarker(v) {
				lessonList = append(lessonList, v)
			}
		}
	}

	sortedTags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		sortedTags = append(sortedTags, tag)
	}
	sort.Strings(sortedTags)

	sortLessons(lessonList)

	joined := strings.Join(lessonList, "\n")
	if utf8.RuneCountInString(joined) > lessonsMaxChars {
		joined = truncateLessons(lessonList)
	}

	return strings.Join(sortedTags, "\n"), joined
}

// hasLessonMarker reports whether a bare string looks like a lesson entry.
func hasLessonMarker(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "модуль") || strings.Contains(lower, "урок") ||
		strings.Contains(lower, "module") || strings.Contains(lower, "lesson")
}

type lessonKey struct {
	family string
	module int
	lesson int
}

// sortLessons orders lessons by (family, module, lesson), unknown families
// last, missing numbers last within their group. Malformed entries keep a
// stable position instead of failing the sort.
func sortLessons(lessons []string) {
	keys := make(map[string]lessonKey, len(lessons))
	for _, l := range lessons {
		if _, ok := keys[l]; !ok {
			keys[l] = extractLessonKey(l)
		}
	}

	sort.SliceStable(lessons, func(i, j int) bool {
		a, b := keys[lessons[i]], keys[lessons[j]]
		if a.family != b.family {
			return a.family < b.family
		}
		if a.module != b.module {
			return a.module < b.module
		}
		return a.lesson < b.lesson
	})
}

const missingNumber = 999

func extractLessonKey(lesson string) lessonKey {
	upper := strings.ToUpper(lesson)

	family := "ZZZ" // unknown families sort last
	switch {
	case strings.Contains(upper, "MTT") || strings.Contains(upper, "МТТ"):
		family = "MTT"
	case strings.Contains(upper, "SPIN") || strings.Contains(upper, "СПИН"):
		family = "SPIN"
	case strings.Contains(upper, "CASH") || strings.Contains(upper, "КЭШ") || strings.Contains(upper, "КЕШ"):
		family = "CASH"
	}

	key := lessonKey{family: family, module: missingNumber, lesson: missingNumber}
	if m := moduleNumRe.FindStringSubmatch(lesson); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			key.module = n
		}
	}
	if m := lessonNumRe.FindStringSubmatch(lesson); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			key.lesson = n
		}
	}
	return key
}

// truncateLessons shrinks an oversized lesson list: long lists keep a head
// and tail window around a skip marker, short ones are hard-cut.
func truncateLessons(lessons []string) string {
	if len(lessons) > lessonsCountLimit {
		skipped := len(lessons) - 2*lessonsKeepWindow
		parts := make([]string, 0, 2*lessonsKeepWindow+1)
		parts = append(parts, lessons[:lessonsKeepWindow]...)
		parts = append(parts, "... ["+strconv.Itoa(skipped)+" lessons skipped] ...")
		parts = append(parts, lessons[len(lessons)-lessonsKeepWindow:]...)
		return strings.Join(parts, "\n")
	}

	joined := strings.Join(lessons, "\n")
	runes := []rune(joined)
	if len(runes) > lessonsMaxChars {
		joined = string(runes[:lessonsMaxChars])
	}
	return joined + "\n[TRUNCATED]"
}
