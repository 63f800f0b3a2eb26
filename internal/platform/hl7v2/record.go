// Package hl7v2 decodes pipe-delimited segmented clinical records (HL7 v2.x)
// into the canonical message model. The decoder is deliberately tolerant:
// ingestion must stay available across arbitrarily malformed feeds, so a
// degraded record produces a best-effort canonical message with sentinel
// values instead of an error.
package hl7v2

import (
	"fmt"
	"strings"
	"time"
)

// Delimiter set for HL7 v2.x encoding. Segments terminate on line breaks,
// fields split on |, components on ^, repetitions on ~.
const (
	fieldSep  = "|"
	compSep   = "^"
	repeatSep = "~"
)

// Record is a raw segmented record split into its typed segments. It is an
// intermediate form; callers normally go straight to Parse, which returns a
// canonical message.
type Record struct {
	ControlID string    // MSH-10
	Timestamp time.Time // MSH-7
	Segments  []Segment
}

// Segment is a single line of a record, classified by its 3-character ID.
type Segment struct {
	Name   string // "MSH", "PID", "ORC", "OBR", "OBX", ...
	Fields []Field
}

// Field holds a field value along with its component and repetition splits.
type Field struct {
	Value      string
	Components []string
	Repeats    [][]string
}

// Decode splits raw segmented text into a Record. It accepts \r, \n, and
// \r\n segment terminators and skips blank lines. Decode only fails when the
// input contains no segments at all; a record without an MSH header is still
// returned so extraction can degrade gracefully.
func Decode(raw string) (*Record, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")

	var lines []string
	for _, line := range strings.Split(text, "\r") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("hl7v2: no segments found")
	}

	rec := &Record{}
	for _, line := range lines {
		if len(line) < 3 {
			continue
		}
		rec.Segments = append(rec.Segments, decodeSegment(line))
	}
	if len(rec.Segments) == 0 {
		return nil, fmt.Errorf("hl7v2: no recognizable segments")
	}

	if msh := rec.Segment("MSH"); msh != nil {
		rec.ControlID = msh.Field(10)
		if ts, err := ParseTimestamp(msh.Field(7)); err == nil {
			rec.Timestamp = ts
		}
	}
	return rec, nil
}

// decodeSegment splits one line into a Segment. MSH is special: the field
// separator character is itself MSH-1, so field numbering is shifted by one
// relative to ordinary segments.
func decodeSegment(line string) Segment {
	seg := Segment{Name: line[:3]}

	if seg.Name == "MSH" {
		if len(line) < 5 {
			return seg
		}
		// Fields[0] = MSH-1 (the separator), Fields[1] = MSH-2 (encoding
		// characters), Fields[2] = MSH-3, and so on.
		seg.Fields = append(seg.Fields, decodeField(string(line[3])))
		for _, part := range strings.Split(line[4:], fieldSep) {
			seg.Fields = append(seg.Fields, decodeField(part))
		}
		return seg
	}

	parts := strings.SplitN(line, fieldSep, 2)
	if len(parts) > 1 {
		for _, part := range strings.Split(parts[1], fieldSep) {
			seg.Fields = append(seg.Fields, decodeField(part))
		}
	}
	return seg
}

// decodeField splits a raw field into repetitions and components. The
// Components slice always reflects the first repetition.
func decodeField(raw string) Field {
	f := Field{Value: raw}
	for _, rep := range strings.Split(raw, repeatSep) {
		f.Repeats = append(f.Repeats, strings.Split(rep, compSep))
	}
	f.Components = f.Repeats[0]
	return f
}

// Segment returns the first segment with the given name, or nil.
func (r *Record) Segment(name string) *Segment {
	for i := range r.Segments {
		if r.Segments[i].Name == name {
			return &r.Segments[i]
		}
	}
	return nil
}

// AllSegments returns every segment with the given name in record order.
func (r *Record) AllSegments(name string) []*Segment {
	var out []*Segment
	for i := range r.Segments {
		if r.Segments[i].Name == name {
			out = append(out, &r.Segments[i])
		}
	}
	return out
}

// Field returns a field value by its 1-based HL7 index, or "" when absent.
// For MSH, index 1 is the field separator itself.
func (s *Segment) Field(index int) string {
	idx := index - 1
	if idx < 0 || idx >= len(s.Fields) {
		return ""
	}
	return s.Fields[idx].Value
}

// Component returns a component value by 1-based field and component
// indices, or "" when absent.
func (s *Segment) Component(fieldIdx, compIdx int) string {
	idx := fieldIdx - 1
	if idx < 0 || idx >= len(s.Fields) {
		return ""
	}
	ci := compIdx - 1
	comps := s.Fields[idx].Components
	if ci < 0 || ci >= len(comps) {
		return ""
	}
	return comps[ci]
}

// tsPadding supplies default month/day ("01") and zero time-of-day digits
// when a compact timestamp arrives truncated.
const tsPadding = "00000101000000"

// ParseTimestamp parses a compact numeric timestamp (YYYYMMDDHHMMSS, or any
// truncation of it down to a bare year). Truncated values are padded with
// default month/day and zero time rather than rejected.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Drop a timezone offset or fractional seconds if present.
	for _, cut := range []string{"+", "-", "."} {
		if i := strings.Index(s, cut); i > 0 {
			s = s[:i]
		}
	}
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("hl7v2: timestamp too short: %q", s)
	}
	if len(s) > 14 {
		s = s[:14]
	}
	if len(s) < 14 {
		s += tsPadding[len(s):]
	}
	return time.Parse("20060102150405", s)
}

// FormatISO renders a compact timestamp as ISO-8601 UTC, or "" when the
// value cannot be interpreted.
func FormatISO(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
