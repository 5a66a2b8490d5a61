// Package enrich joins fetched rows with partner-service profile records and
// rewrites the row schema to the enriched destination layout.
package enrich

import (
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/sheetsync/internal/core/classify"
	"github.com/vietddude/sheetsync/internal/core/domain"
	"github.com/vietddude/sheetsync/internal/sync/funnel"
)

// Columns appended in place of the two trailing sync-state columns, which are
// re-appended at the end.
var enrichmentHeaders = []string{
	"ph_utm_medium", "ph_utm_source", "ph_utm_campaign", "ph_referer",
	"auth_date", "last_visit",
	"group", "courses", "lessons",
	"last_action_date", "max_funnel_action",
}

// Merge joins rows with records by subject id and returns the rewritten rows
// and headers. Rows without a matching record get empty enrichment fields
// rather than being dropped. Every output row is padded or truncated to span
// so the destination grid has uniform width.
//
// When several records share a subject id the lookup keeps the last one seen
// (last write wins). The partner service is not expected to emit duplicates;
// this mirrors its observed behavior rather than merging them.
func Merge(
	rows [][]any,
	headers []string,
	records []domain.EnrichmentRecord,
	span int,
	classifier *classify.Classifier,
) ([][]any, []string) {
	lookup := make(map[int64]domain.EnrichmentRecord, len(records))
	for _, rec := range records {
		lookup[rec.SubjectID] = rec
	}

	var newHeaders []string
	if len(headers) >= 2 {
		newHeaders = append(newHeaders, headers[:len(headers)-2]...)
	} else {
		newHeaders = append(newHeaders, headers...)
	}
	newHeaders = append(newHeaders, enrichmentHeaders...)
	newHeaders = fitWidth(newHeaders, span)

	merged := make([][]any, 0, len(rows))
	for _, row := range rows {
		rec, ok := lookup[subjectID(row)]
		var recPtr *domain.EnrichmentRecord
		if ok {
			recPtr = &rec
		}
		merged = append(merged, buildRow(row, recPtr, span, classifier))
	}

	return merged, newHeaders
}

func buildRow(row []any, rec *domain.EnrichmentRecord, span int, classifier *classify.Classifier) []any {
	var lastAction, lastState any
	base := row
	if len(row) >= 2 {
		lastAction = formatCell(row[len(row)-2])
		lastState = row[len(row)-1]
		base = row[:len(row)-2]
	}
	if lastState == nil {
		lastState = ""
	}

	var utmMedium, utmSource, utmCampaign, referer, authDate, lastVisit string
	var groupText, coursesText, lessonsText string

	if rec != nil {
		if rec.UTM != nil {
			utmMedium = rec.UTM.Medium
			utmSource = rec.UTM.Source
			utmCampaign = rec.UTM.Campaign
		}
		referer = rec.Referer
		authDate = toSheetDate(rec.AuthorizationDate)
		lastVisit = toSheetDate(rec.LastVisitDate)

		var items []any
		if len(rec.Courses) > 0 {
			items = append(items, rec.Courses)
		}
		for _, l := range rec.Lessons {
			items = append(items, l)
		}
		for _, g := range rec.Group {
			items = append(items, g)
		}
		coursesText, lessonsText = classifier.Parse(items)
		groupText = groupCell(rec.Group)
	}

	newRow := make([]any, 0, span)
	newRow = append(newRow, base...)
	newRow = append(newRow,
		utmMedium, utmSource, utmCampaign, referer,
		authDate, lastVisit,
		groupText, coursesText, lessonsText,
		lastAction, lastState,
	)
	return fitWidth(newRow, span)
}

// groupCell renders group memberships, dropping lesson strings misfiled into
// groups upstream (entries carrying both a module and a lesson marker).
func groupCell(groups []string) string {
	kept := groups[:0:0]
	for _, g := range groups {
		lower := strings.ToLower(g)
		if strings.Contains(lower, "модуль") && strings.Contains(lower, "урок") {
			continue
		}
		kept = append(kept, g)
	}
	return strings.Join(kept, "\n")
}

// toSheetDate reformats an RFC3339 timestamp to the destination's date
// convention; unparseable input passes through unchanged.
func toSheetDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", funnel.TimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(funnel.TimeLayout)
		}
	}
	return s
}

func formatCell(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(funnel.TimeLayout)
	default:
		return v
	}
}

func subjectID(row []any) int64 {
	if len(row) == 0 {
		return 0
	}
	switch id := row[0].(type) {
	case int64:
		return id
	case int:
		return int64(id)
	case int32:
		return int64(id)
	case float64:
		return int64(id)
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func fitWidth[T any](row []T, span int) []T {
	if span <= 0 {
		return row
	}
	if len(row) > span {
		return row[:span]
	}
	for len(row) < span {
		var empty T
		row = append(row, empty)
	}
	return row
}
