// Package funnel joins a primary row set's subjects with their funnel event
// history and current state, and renders the history for a size-bounded
// destination cell.
package funnel

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// TimeLayout is the destination's date convention.
const TimeLayout = "2006-01-02 15:04:05"

// Rendering limits for the history cell.
const (
	historyMaxChars   = 40000
	historyKeepWindow = 100
	historyCountLimit = 200
)

// Merge builds one SubjectState per subject that appears in either input.
// History within a subject is ordered ascending by timestamp; when a subject
// has several state rows the most recent one wins. Single pass over each
// input, near-linear in total size.
func Merge(history []domain.HistoryEvent, states []domain.StateEvent) map[int64]*domain.SubjectState {
	merged := make(map[int64]*domain.SubjectState)

	get := func(id int64) *domain.SubjectState {
		s, ok := merged[id]
		if !ok {
			s = &domain.SubjectState{SubjectID: id}
			merged[id] = s
		}
		return s
	}

	for _, ev := range history {
		s := get(ev.SubjectID)
		s.History = append(s.History, ev)
		if ev.Timestamp.After(s.LastEventTime) {
			s.LastEventTime = ev.Timestamp
		}
	}

	stateTimes := make(map[int64]int64, len(states))
	for _, st := range states {
		s := get(st.SubjectID)
		if prev, ok := stateTimes[st.SubjectID]; !ok || st.Timestamp.UnixNano() >= prev {
			s.CurrentLabel = st.Label
			stateTimes[st.SubjectID] = st.Timestamp.UnixNano()
		}
	}

	for _, s := range merged {
		sort.SliceStable(s.History, func(i, j int) bool {
			return s.History[i].Timestamp.Before(s.History[j].Timestamp)
		})
	}

	return merged
}

// FormatHistory renders a subject's history as newline-joined
// "[<timestamp> - <label>]" entries, never longer than maxChars. Long
// histories keep a head and tail window around a count marker; short but
// oversized ones are hard-cut. maxChars <= 0 uses the default ceiling.
func FormatHistory(s *domain.SubjectState, maxChars int) string {
	if s == nil || len(s.History) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = historyMaxChars
	}

	parts := make([]string, len(s.History))
	for i, ev := range s.History {
		parts[i] = "[" + ev.Timestamp.Format(TimeLayout) + " - " + ev.Label + "]"
	}

	joined := strings.Join(parts, "\n")
	if utf8.RuneCountInString(joined) <= maxChars {
		return joined
	}

	if len(parts) > historyCountLimit {
		dropped := len(parts) - 2*historyKeepWindow
		window := make([]string, 0, 2*historyKeepWindow+1)
		window = append(window, parts[:historyKeepWindow]...)
		window = append(window, "[..."+strconv.Itoa(dropped)+" entries...]")
		window = append(window, parts[len(parts)-historyKeepWindow:]...)
		joined = strings.Join(window, "\n")
		if utf8.RuneCountInString(joined) <= maxChars {
			return joined
		}
		// Window still oversized (giant labels); fall through to the hard cut.
	}

	return hardCut(joined, maxChars)
}

func hardCut(s string, maxChars int) string {
	const marker = "\n[TRUNCATED]"
	cut := maxChars - utf8.RuneCountInString(marker)
	if cut < 0 {
		cut = 0
	}
	runes := []rune(s)
	if cut > len(runes) {
		cut = len(runes)
	}
	return string(runes[:cut]) + marker
}
