package odata

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// isoFormat is the civil timestamp layout emitted for converted dates.
// Conversion targets local time and carries no UTC-offset suffix.
const isoFormat = "2006-01-02T15:04:05"

const epochMarker = "/Date("

// NormalizeDates rewrites every top-level date-encoded property of rec to an
// ISO-8601 civil timestamp. Two encodings are recognized:
//
//   - string values wrapping epoch milliseconds as "/Date(1609459200000)/",
//     optionally carrying a "+0000" style zone suffix (OData v2)
//   - integer values of properties whose name contains "Date" (OData v4)
//
// The scan is one level deep only; nested objects and arrays are left
// untouched. Already-ISO strings pass through unchanged, so the operation
// is idempotent.
func NormalizeDates(rec Record) {
	for key, value := range rec {
		rec[key] = normalizeValue(key, value)
	}
}

func normalizeValue(key string, value any) any {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, epochMarker) {
			return value
		}
		ms, ok := parseEpochString(v)
		if !ok {
			return value
		}
		return formatEpochMillis(ms)
	case float64:
		// encoding/json decodes all numbers to float64; only whole numbers
		// on *Date* properties are epoch candidates.
		if v != math.Trunc(v) || !strings.Contains(key, "Date") {
			return value
		}
		return formatEpochMillis(int64(v))
	default:
		return value
	}
}

// parseEpochString isolates the millisecond count from a "/Date(...)/"
// wrapper, dropping any trailing zone suffix such as "+0000" or "-0500".
func parseEpochString(s string) (int64, bool) {
	start := strings.Index(s, epochMarker)
	if start < 0 {
		return 0, false
	}
	rest := s[start+len(epochMarker):]

	end := strings.Index(rest, ")/")
	if end < 0 {
		return 0, false
	}
	digits := rest[:end]
	if digits == "" {
		return 0, false
	}

	// A zone suffix begins at a sign that is not the leading negative sign.
	if idx := strings.IndexAny(digits[1:], "+-"); idx >= 0 {
		digits = digits[:idx+1]
	}

	ms, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func formatEpochMillis(ms int64) string {
	return time.UnixMilli(ms).Format(isoFormat)
}
