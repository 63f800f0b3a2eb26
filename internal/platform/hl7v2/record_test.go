package hl7v2

import (
	"testing"
)

const sampleORU = "MSH|^~\\&|LabSystem|LabFac|ClinBridge|Clinic|20240115150000||ORU^R01|MSG00002|P|2.5.1\r" +
	"PID|1|E123|MRN12345^^^MRNAuth||Doe^John||19800515|M\r" +
	"ORC|RE|ORD001\r" +
	"OBR|1|ORD001|LAB001|2823-3^Potassium^LN|S||20240115140000|||||||||1234^Smith^Robert\r" +
	"OBX|1|NM|2823-3^Potassium^LN||7.1|mEq/L|3.5-5.0|HH|||F|||20240115140500"

func TestDecode_Segments(t *testing.T) {
	rec, err := Decode(sampleORU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.Segments) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(rec.Segments))
	}
	if rec.ControlID != "MSG00002" {
		t.Errorf("expected ControlID 'MSG00002', got %q", rec.ControlID)
	}
	if rec.Timestamp.Year() != 2024 || rec.Timestamp.Month() != 1 || rec.Timestamp.Day() != 15 {
		t.Errorf("unexpected timestamp: %v", rec.Timestamp)
	}
}

func TestDecode_LineEndings(t *testing.T) {
	for _, sep := range []string{"\r", "\n", "\r\n"} {
		raw := "MSH|^~\\&|App|Fac|||20240101120000||ORU^R01|ID1|P|2.5.1" + sep + "PID|1||MRN1||Doe^Jane"
		rec, err := Decode(raw)
		if err != nil {
			t.Fatalf("separator %q: unexpected error: %v", sep, err)
		}
		if len(rec.Segments) != 2 {
			t.Errorf("separator %q: expected 2 segments, got %d", sep, len(rec.Segments))
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := Decode("\r\n\r\n  \n"); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestSegment_FieldIndexing(t *testing.T) {
	rec, err := Decode(sampleORU)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// MSH numbering: MSH-1 is the field separator itself.
	msh := rec.Segment("MSH")
	if msh == nil {
		t.Fatal("expected MSH segment")
	}
	if got := msh.Field(1); got != "|" {
		t.Errorf("MSH-1 = %q, want '|'", got)
	}
	if got := msh.Field(9); got != "ORU^R01" {
		t.Errorf("MSH-9 = %q, want 'ORU^R01'", got)
	}

	pid := rec.Segment("PID")
	if got := pid.Component(3, 1); got != "MRN12345" {
		t.Errorf("PID-3.1 = %q, want 'MRN12345'", got)
	}
	if got := pid.Component(5, 2); got != "John" {
		t.Errorf("PID-5.2 = %q, want 'John'", got)
	}

	// Out-of-bounds indices return empty strings, never panic.
	if got := pid.Field(99); got != "" {
		t.Errorf("PID-99 = %q, want empty", got)
	}
	if got := pid.Component(99, 99); got != "" {
		t.Errorf("PID-99.99 = %q, want empty", got)
	}
}

func TestDecode_Repetitions(t *testing.T) {
	raw := "MSH|^~\\&|App|Fac|||20240101||ORU^R01|X|P|2.5\rPID|1||MRN1~ALT2^^^Alt||Doe^Jane"
	rec, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pid := rec.Segment("PID")
	f := pid.Fields[2]
	if len(f.Repeats) != 2 {
		t.Fatalf("expected 2 repetitions, got %d", len(f.Repeats))
	}
	if f.Repeats[1][0] != "ALT2" {
		t.Errorf("second repetition = %q, want 'ALT2'", f.Repeats[1][0])
	}
	// Components track the first repetition.
	if pid.Component(3, 1) != "MRN1" {
		t.Errorf("PID-3.1 = %q, want 'MRN1'", pid.Component(3, 1))
	}
}

func TestParseTimestamp_Truncated(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"20240115143025", "2024-01-15T14:30:25Z"},
		{"202401151430", "2024-01-15T14:30:00Z"},
		{"20240115", "2024-01-15T00:00:00Z"},
		{"202401", "2024-01-01T00:00:00Z"},
		{"2024", "2024-01-01T00:00:00Z"},
	}

	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if iso := got.UTC().Format("2006-01-02T15:04:05Z"); iso != tc.want {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", tc.in, iso, tc.want)
		}
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "20", "abc"} {
		if _, err := ParseTimestamp(in); err == nil {
			t.Errorf("ParseTimestamp(%q): expected error", in)
		}
	}
}

func TestFormatISO(t *testing.T) {
	if got := FormatISO("20240115140500"); got != "2024-01-15T14:05:00Z" {
		t.Errorf("FormatISO = %q", got)
	}
	if got := FormatISO("bogus"); got != "" {
		t.Errorf("FormatISO for garbage = %q, want empty", got)
	}
}
