// Package normalize converts the loosely formatted scalar values found in
// spreadsheet exports into canonical types. All functions are total:
// malformed input yields a safe default, never an error.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Monetary parses a locale-ambiguous monetary string. Both the
// thousands-dot/decimal-comma convention ("1.234,56") and the
// thousands-comma/decimal-dot convention ("1,234.56") are accepted;
// currency symbols and whitespace are stripped. Unparseable input
// yields zero.
func Monetary(raw string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '.' || r == ',' || r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero
	}

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// the rightmost separator is the decimal point
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			// multiple commas can only be thousands separators
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// spreadsheet serial dates count days since 1899-12-30; the Unix epoch
// falls on serial 25569.
const (
	serialEpochOffset = 25569
	minSerial         = 10000 // 1927-05-18, below this a bare number is not a date
	maxSerial         = 80000 // 2119-01-11
)

const isoDate = "2006-01-02"

// Date converts a raw date value to canonical ISO form (YYYY-MM-DD).
// Accepted inputs: ISO dates, DD/MM/YYYY, DD-MM-YYYY, and spreadsheet
// serial numbers. The second return is false when the input is empty or
// unrecognized; absence of a date is a normal outcome, not an error.
func Date(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}

	if t, err := time.Parse(isoDate, v); err == nil {
		return t.Format(isoDate), true
	}
	// ISO timestamps from re-exported destination data
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC().Format(isoDate), true
	}

	for _, sep := range []string{"/", "-"} {
		parts := strings.Split(v, sep)
		if len(parts) != 3 {
			continue
		}
		day, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
		month, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
		year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
		if errD != nil || errM != nil || errY != nil {
			continue
		}
		if year < 1000 || year > 9999 {
			continue
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// reject rollovers like 31/02/2024
		if t.Year() != year || int(t.Month()) != month || t.Day() != day {
			return "", false
		}
		return t.Format(isoDate), true
	}

	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if serial < minSerial || serial > maxSerial {
			return "", false
		}
		days := int(serial) - serialEpochOffset
		t := time.Unix(int64(days)*86400, 0).UTC()
		return t.Format(isoDate), true
	}

	return "", false
}

// Truncate returns nil for blank input, otherwise the first max runes.
func Truncate(s string, max int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return &s
}
