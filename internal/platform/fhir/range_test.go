package fhir

import "testing"

func fp(v float64) *float64 { return &v }

func TestFormatReferenceRange(t *testing.T) {
	cases := []struct {
		name string
		low  *float64
		high *float64
		unit string
		want string
	}{
		{"both bounds", fp(3.5), fp(5.0), "mEq/L", "3.5-5 mEq/L"},
		{"low only", fp(3.5), nil, "mEq/L", ">= 3.5 mEq/L"},
		{"high only", nil, fp(5.0), "mEq/L", "<= 5 mEq/L"},
		{"no bounds", nil, nil, "mEq/L", ""},
		{"no unit", fp(12.0), fp(17.5), "", "12-17.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatReferenceRange(tc.low, tc.high, tc.unit); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// TestReferenceRange_RoundTrip verifies that formatting is idempotent:
// parsing a formatted range and formatting it again yields the same string,
// and the recovered bound set equals the original.
func TestReferenceRange_RoundTrip(t *testing.T) {
	cases := []struct {
		low  *float64
		high *float64
		unit string
	}{
		{fp(3.5), fp(5.0), "mEq/L"},
		{fp(0.5), nil, "ng/mL"},
		{nil, fp(200), "mg/dL"},
		{fp(12), fp(17.5), ""},
	}

	for _, tc := range cases {
		s := FormatReferenceRange(tc.low, tc.high, tc.unit)
		low, high, unit := ParseReferenceRange(s)

		if (low == nil) != (tc.low == nil) || (low != nil && *low != *tc.low) {
			t.Errorf("%q: low bound not recovered: %v", s, low)
		}
		if (high == nil) != (tc.high == nil) || (high != nil && *high != *tc.high) {
			t.Errorf("%q: high bound not recovered: %v", s, high)
		}
		if unit != tc.unit {
			t.Errorf("%q: unit %q not recovered, got %q", s, tc.unit, unit)
		}

		if again := FormatReferenceRange(low, high, unit); again != s {
			t.Errorf("formatting not idempotent: %q != %q", again, s)
		}
	}
}

func TestParseReferenceRange_Unrecognized(t *testing.T) {
	for _, s := range []string{"", "see chart", "high"} {
		low, high, unit := ParseReferenceRange(s)
		if low != nil || high != nil || unit != "" {
			t.Errorf("ParseReferenceRange(%q) = %v, %v, %q; want nil bounds", s, low, high, unit)
		}
	}
}

func TestRangeDisplay_PrefersSourceText(t *testing.T) {
	ranges := []ReferenceRange{{
		Low:  &Quantity{Value: fp(3.5), Unit: "mEq/L"},
		Text: "3.5 to 5.0 mEq/L",
	}}
	if got := rangeDisplay(ranges); got != "3.5 to 5.0 mEq/L" {
		t.Errorf("expected source text preferred, got %q", got)
	}
}
