package enrich

import (
	"testing"
	"time"

	"github.com/vietddude/sheetsync/internal/core/classify"
	"github.com/vietddude/sheetsync/internal/core/domain"
)

const span = 24 // A:X

var baseHeaders = []string{
	"id", "username", "first_name",
	"funnel_history", "last_action_date", "max_funnel_action",
}

func sampleRow(id int64) []any {
	return []any{
		id, "user", "Ann",
		"[2025-06-01 12:00:00 - start]",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		"start",
	}
}

func TestMergeRowWidthAlwaysEqualsSpan(t *testing.T) {
	records := []domain.EnrichmentRecord{
		{SubjectID: 1, Referer: "friend"},
	}
	rows := [][]any{sampleRow(1), sampleRow(2)} // 2 has no record

	merged, headers := Merge(rows, baseHeaders, records, span, classify.New())

	if len(headers) != span {
		t.Errorf("header width = %d, want %d", len(headers), span)
	}
	for i, row := range merged {
		if len(row) != span {
			t.Errorf("row %d width = %d, want %d", i, len(row), span)
		}
	}
}

func TestMergeHeadersRewritten(t *testing.T) {
	_, headers := Merge(nil, baseHeaders, nil, 0, classify.New())

	want := []string{
		"id", "username", "first_name", "funnel_history",
		"ph_utm_medium", "ph_utm_source", "ph_utm_campaign", "ph_referer",
		"auth_date", "last_visit", "group", "courses", "lessons",
		"last_action_date", "max_funnel_action",
	}
	if len(headers) != len(want) {
		t.Fatalf("header count = %d, want %d (%v)", len(headers), len(want), headers)
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Errorf("headers[%d] = %q, want %q", i, headers[i], want[i])
		}
	}
}

func TestMergeStandardLayoutFillsSpanExactly(t *testing.T) {
	// The standard export fetches 12 columns; the funnel merge appends 3.
	postFetch := []string{
		"tg_id", "username", "first_name", "last_name", "phone", "email",
		"language_code", "is_premium", "utm_source", "utm_medium",
		"created_at", "updated_at",
		"funnel_history", "last_action_date", "max_funnel_action",
	}

	_, headers := Merge(nil, postFetch, nil, span, classify.New())

	if len(headers) != span {
		t.Fatalf("header width = %d, want %d", len(headers), span)
	}
	// Nothing may fall off the right edge of the span.
	if headers[span-1] != "max_funnel_action" || headers[span-2] != "last_action_date" {
		t.Errorf("trailing headers = %q, %q, want last_action_date, max_funnel_action",
			headers[span-2], headers[span-1])
	}
	// The free-text columns must sit on the letters the sheet formatting
	// targets: M funnel_history, T group, U courses, V lessons.
	for col, want := range map[int]string{
		13: "funnel_history",
		20: "group",
		21: "courses",
		22: "lessons",
	} {
		if got := headers[col-1]; got != want {
			t.Errorf("column %d = %q, want %q", col, got, want)
		}
	}
}

func TestMergeFillsEnrichmentFields(t *testing.T) {
	records := []domain.EnrichmentRecord{{
		SubjectID:         1,
		Referer:           "partner_site",
		AuthorizationDate: "2025-05-20T10:30:00Z",
		LastVisitDate:     "2025-06-01T08:00:00+03:00",
		UTM:               &domain.UTMData{Medium: "cpc", Source: "tg", Campaign: "spring"},
		Group:             []string{"VIP", "MTT Модуль 1 Урок 3"},
		Courses:           map[string][]string{"MTT Course 1": {"Модуль 1 Урок 1"}},
	}}

	merged, _ := Merge([][]any{sampleRow(1)}, baseHeaders, records, 0, classify.New())
	row := merged[0]

	// base(4) + utm_medium, utm_source, utm_campaign, referer, auth_date,
	// last_visit, group, courses, lessons, last_action_date, max_funnel_action
	if row[4] != "cpc" || row[5] != "tg" || row[6] != "spring" {
		t.Errorf("utm fields = %v %v %v", row[4], row[5], row[6])
	}
	if row[7] != "partner_site" {
		t.Errorf("referer = %v", row[7])
	}
	if row[8] != "2025-05-20 10:30:00" {
		t.Errorf("auth_date = %v, want reformatted", row[8])
	}
	if row[9] != "2025-06-01 08:00:00" {
		t.Errorf("last_visit = %v, want reformatted", row[9])
	}
	// Lesson strings misfiled into groups are dropped from the group cell.
	if row[10] != "VIP" {
		t.Errorf("group = %v, want VIP only", row[10])
	}
	if row[11] != "MTT1" {
		t.Errorf("courses = %v, want MTT1", row[11])
	}
	if row[13] != "2025-06-01 12:00:00" {
		t.Errorf("last_action_date = %v, want formatted timestamp", row[13])
	}
	if row[14] != "start" {
		t.Errorf("max_funnel_action = %v, want start", row[14])
	}
}

func TestMergeMissingRecordYieldsEmptyFields(t *testing.T) {
	merged, _ := Merge([][]any{sampleRow(5)}, baseHeaders, nil, 0, classify.New())
	row := merged[0]

	for i := 4; i <= 12; i++ {
		if row[i] != "" {
			t.Errorf("enrichment field %d = %v, want empty", i, row[i])
		}
	}
	// The sync-state columns survive even without a record.
	if row[13] != "2025-06-01 12:00:00" || row[14] != "start" {
		t.Errorf("sync-state columns = %v, %v", row[13], row[14])
	}
}

func TestMergeDuplicateRecordsLastWins(t *testing.T) {
	records := []domain.EnrichmentRecord{
		{SubjectID: 1, Referer: "first"},
		{SubjectID: 1, Referer: "second"},
	}
	merged, _ := Merge([][]any{sampleRow(1)}, baseHeaders, records, 0, classify.New())
	if merged[0][7] != "second" {
		t.Errorf("referer = %v, want last record to win", merged[0][7])
	}
}

func TestToSheetDatePassthroughOnGarbage(t *testing.T) {
	if got := toSheetDate("not-a-date"); got != "not-a-date" {
		t.Errorf("got %q, want passthrough", got)
	}
	if got := toSheetDate(""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
