package fhir

import (
	"strconv"
	"strings"
)

// FormatReferenceRange renders observation range bounds in the canonical
// display form:
//
//	both bounds   "3.5-5 mEq/L"
//	low only      ">= 3.5 mEq/L"
//	high only     "<= 5 mEq/L"
//	neither       ""
//
// Numbers use the minimal decimal representation (5.0 renders as "5").
func FormatReferenceRange(low, high *float64, unit string) string {
	var s string
	switch {
	case low != nil && high != nil:
		s = formatNum(*low) + "-" + formatNum(*high)
	case low != nil:
		s = ">= " + formatNum(*low)
	case high != nil:
		s = "<= " + formatNum(*high)
	default:
		return ""
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// ParseReferenceRange inverts FormatReferenceRange, recovering the bound set
// and unit from a display string. It returns nil bounds and an empty unit
// when the string does not match any of the three produced shapes, so
// formatting a parsed range is idempotent.
func ParseReferenceRange(s string) (low, high *float64, unit string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, ""
	}

	numPart := s
	if i := strings.IndexByte(s, ' '); i > 0 && !strings.HasPrefix(s, ">=") && !strings.HasPrefix(s, "<=") {
		numPart, unit = s[:i], strings.TrimSpace(s[i+1:])
	}

	switch {
	case strings.HasPrefix(s, ">= "):
		rest := strings.TrimPrefix(s, ">= ")
		numPart = rest
		if i := strings.IndexByte(rest, ' '); i > 0 {
			numPart, unit = rest[:i], strings.TrimSpace(rest[i+1:])
		}
		if v, err := strconv.ParseFloat(numPart, 64); err == nil {
			return &v, nil, unit
		}
		return nil, nil, ""
	case strings.HasPrefix(s, "<= "):
		rest := strings.TrimPrefix(s, "<= ")
		numPart = rest
		if i := strings.IndexByte(rest, ' '); i > 0 {
			numPart, unit = rest[:i], strings.TrimSpace(rest[i+1:])
		}
		if v, err := strconv.ParseFloat(numPart, 64); err == nil {
			return nil, &v, unit
		}
		return nil, nil, ""
	}

	// Two-sided "low-high". Split on the separating dash; a leading minus
	// sign is part of the low bound, not a separator.
	if i := strings.IndexByte(numPart[1:], '-'); i >= 0 {
		lowStr, highStr := numPart[:i+1], numPart[i+2:]
		lv, lerr := strconv.ParseFloat(lowStr, 64)
		hv, herr := strconv.ParseFloat(highStr, 64)
		if lerr == nil && herr == nil {
			return &lv, &hv, unit
		}
	}
	return nil, nil, ""
}

// formatNum renders a float with the fewest digits that round-trip.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// rangeDisplay formats the first reference range of an observation,
// preferring an explicit text rendering from the source.
func rangeDisplay(ranges []ReferenceRange) string {
	if len(ranges) == 0 {
		return ""
	}
	rr := ranges[0]
	if rr.Text != "" {
		return rr.Text
	}

	var low, high *float64
	unit := ""
	if rr.Low != nil {
		low = rr.Low.Value
		unit = rr.Low.Unit
	}
	if rr.High != nil {
		high = rr.High.Value
		if unit == "" {
			unit = rr.High.Unit
		}
	}
	return FormatReferenceRange(low, high, unit)
}
