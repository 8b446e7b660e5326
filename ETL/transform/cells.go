package transform

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// spreadsheet day 0
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Serial numbers outside this window are treated as plain numbers, not dates
const (
	minDateSerial = 20000 // 1954-10-03
	maxDateSerial = 80000 // 2119-01-10
)

var cjkDateReplacer = strings.NewReplacer("年", "-", "月", "-", "日", "", "号", "")

// NormalizeName trims a name cell, turns full-width spaces into spaces and collapses runs of whitespace
func NormalizeName(cell string) string {
	cell = strings.ReplaceAll(cell, "　", " ")
	return strings.Join(strings.Fields(cell), " ")
}

// ParseServiceDate parses a date cell permissively.
// The second return value is false for empty or unparseable cells.
func ParseServiceDate(cell string) (time.Time, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(cell, "　", " "))
	if s == "" {
		return time.Time{}, false
	}

	// Numbers in the serial window are spreadsheet dates; others (e.g. 20240107) go to dateparse
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minDateSerial && serial < maxDateSerial {
		days := int(math.Floor(serial))
		return serialEpoch.AddDate(0, 0, days), true
	}

	if strings.ContainsAny(s, "年月日号") {
		s = strings.TrimSpace(cjkDateReplacer.Replace(s))
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// RowChecksum returns the SHA-1 of the trimmed cells joined by "|".
// Cells missing from a short row count as empty.
func RowChecksum(row []string, lastIdx int) string {
	cells := make([]string, lastIdx+1)
	for i := range cells {
		cells[i] = cellAt(row, i)
	}
	sum := sha1.Sum([]byte(strings.Join(cells, "|")))
	return hex.EncodeToString(sum[:])
}

// cellAt returns the trimmed cell or "" past the end of the row
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
