package sheets

import (
	"fmt"
	"strings"
	"time"
)

// cellTimeLayout is the date convention the destination expects.
const cellTimeLayout = "2006-01-02 15:04:05"

// FormatValue converts a scalar to its destination-native text form.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return t.Format(cellTimeLayout)
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// toGrid renders every cell of a row grid to text.
func toGrid(rows [][]any) [][]any {
	grid := make([][]any, len(rows))
	for i, row := range rows {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = FormatValue(v)
		}
		grid[i] = out
	}
	return grid
}

// ColumnLetter converts a 1-based column index to its A1 letter form.
func ColumnLetter(n int) string {
	var b strings.Builder
	for n > 0 {
		n--
		b.WriteByte(byte('A' + n%26))
		n /= 26
	}
	// Letters accumulate in reverse.
	s := []byte(b.String())
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return string(s)
}

// ColumnIndex converts an A1 column letter to its 1-based index.
func ColumnIndex(letters string) int {
	index := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			continue
		}
		index = index*26 + int(r-'A') + 1
	}
	return index
}

// SpanWidth returns the column count of a range like "A:X".
func SpanWidth(columnRange string) int {
	return ColumnIndex(RangeEnd(columnRange))
}

// RangeEnd returns the end column letter of a range like "A:X".
func RangeEnd(columnRange string) string {
	if i := strings.IndexByte(columnRange, ':'); i >= 0 {
		return columnRange[i+1:]
	}
	return columnRange
}

// RangeStart returns the start column letter of a range like "A:X".
func RangeStart(columnRange string) string {
	if i := strings.IndexByte(columnRange, ':'); i >= 0 {
		return columnRange[:i]
	}
	return columnRange
}
