// Package ingest is the HTTP boundary of the normalization pipeline. It
// authenticates inbound payloads, detects which source format applies,
// routes to the matching parser, and runs the resulting canonical messages
// through the reasoning and delivery collaborators.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

// ErrUnrecognizedFormat is returned when a payload matches none of the
// detector's format signatures. Decode failures on a matched format return
// ordinary errors instead.
var ErrUnrecognizedFormat = errors.New("ingest: unrecognized payload format")

// Format identifies which parser a detected payload should be routed to.
type Format string

const (
	FormatFHIR      Format = "fhir"
	FormatHL7       Format = "hl7v2"
	FormatCanonical Format = "canonical"
	FormatFlat      Format = "flat"
	FormatUnknown   Format = "unknown"
)

// hl7Aliases are the JSON keys under which integration middleware is known
// to embed raw segmented-record text.
var hl7Aliases = []string{"hl7_message", "hl7", "raw_message", "message", "segments"}

// Detection is the outcome of format detection: the chosen format plus the
// material the matching parser needs.
type Detection struct {
	Format    Format
	Resource  []byte             // raw JSON for the FHIR parser
	Segmented string             // unwrapped segmented-record text
	Canonical *canonical.Message // pass-through or flat-remapped message
}

// Detect inspects an opaque payload and decides which parser applies, in
// priority order: FHIR resourceType discriminator, embedded segmented text
// under a known alias, structural canonical match, flat middleware key
// convention, then raw segmented text. Anything else is unrecognized.
func Detect(payload []byte) (*Detection, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnrecognizedFormat)
	}

	if trimmed[0] != '{' {
		if looksSegmented(string(trimmed)) {
			return &Detection{Format: FormatHL7, Segmented: string(trimmed)}, nil
		}
		return nil, ErrUnrecognizedFormat
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("ingest: invalid JSON payload: %w", err)
	}

	// 1. FHIR resource or bundle.
	if _, ok := obj["resourceType"]; ok {
		return &Detection{Format: FormatFHIR, Resource: trimmed}, nil
	}

	// 2. Segmented text embedded under a middleware alias.
	for _, alias := range hl7Aliases {
		raw, ok := obj[alias]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			continue
		}
		if looksSegmented(text) {
			return &Detection{Format: FormatHL7, Segmented: text}, nil
		}
	}

	// 3. Already canonical: message id, patient, and content present.
	if hasKeys(obj, "messageId", "patient", "content") {
		var msg canonical.Message
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return nil, fmt.Errorf("ingest: payload resembles canonical form but does not decode: %w", err)
		}
		msg.Finalize()
		return &Detection{Format: FormatCanonical, Canonical: &msg}, nil
	}

	// 4. Flat middleware key convention.
	if hasKeys(obj, "patient_mrn") || hasKeys(obj, "message_type", "urgency") {
		msg, err := remapFlat(trimmed)
		if err != nil {
			return nil, err
		}
		return &Detection{Format: FormatFlat, Canonical: msg}, nil
	}

	return nil, ErrUnrecognizedFormat
}

// looksSegmented reports whether text plausibly starts with a segmented
// record: a 3-character segment ID followed by the field separator.
func looksSegmented(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 4 || text[3] != '|' {
		return false
	}
	return strings.HasPrefix(text, "MSH") || isSegmentID(text[:3])
}

func isSegmentID(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func hasKeys(obj map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// flatPayload is the alternate flat key-naming convention produced by
// integration middleware upstream of this gateway.
type flatPayload struct {
	MessageID        string `json:"message_id"`
	MessageType      string `json:"message_type"`
	Timestamp        string `json:"timestamp"`
	PatientMRN       string `json:"patient_mrn"`
	PatientID        string `json:"patient_id"`
	PatientFirstName string `json:"patient_first_name"`
	PatientLastName  string `json:"patient_last_name"`
	PatientDOB       string `json:"patient_dob"`
	PatientSex       string `json:"patient_sex"`
	ProviderID       string `json:"provider_id"`
	ProviderName     string `json:"provider_name"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
	Urgency          string `json:"urgency"`
	TestName         string `json:"test_name"`
	TestValue        string `json:"test_value"`
	TestUnits        string `json:"test_units"`
	ReferenceRange   string `json:"reference_range"`
	AbnormalFlag     string `json:"abnormal_flag"`
}

// remapFlat normalizes the flat key convention into a canonical message.
func remapFlat(data []byte) (*canonical.Message, error) {
	var flat flatPayload
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("ingest: decode flat payload: %w", err)
	}

	msg := canonical.New(flatMessageType(flat.MessageType))
	if flat.MessageID != "" {
		msg.ID = flat.MessageID
	}
	if flat.PatientMRN != "" {
		msg.Patient.MRN = flat.PatientMRN
	}
	if flat.PatientID != "" {
		msg.Patient.ExternalPatientID = flat.PatientID
	} else if flat.PatientMRN != "" {
		msg.Patient.ExternalPatientID = flat.PatientMRN
	}
	if flat.PatientFirstName != "" {
		msg.Patient.FirstName = flat.PatientFirstName
	}
	if flat.PatientLastName != "" {
		msg.Patient.LastName = flat.PatientLastName
	}
	msg.Patient.DOB = flat.PatientDOB
	msg.Patient.Sex = flat.PatientSex
	msg.Provider = canonical.Provider{ID: flat.ProviderID, Name: flat.ProviderName}
	msg.Content.Subject = flat.Subject
	msg.Content.Body = flat.Body
	msg.Content.Urgency = flatUrgency(flat.Urgency)

	if flat.TestName != "" || flat.TestValue != "" {
		msg.LabResults = []canonical.LabResult{{
			TestName:       flat.TestName,
			Value:          flat.TestValue,
			Units:          flat.TestUnits,
			ReferenceRange: flat.ReferenceRange,
			Flag:           canonical.FlagFromCode(flat.AbnormalFlag),
		}}
	}

	msg.Finalize()
	return msg, nil
}

// flatUrgency is the flat convention's own urgency mapping. Unlike the
// token-exact priority mapper used by the parsers, middleware feeds send
// free-ish text, so this one matches keywords by substring. The two mappers
// are intentionally kept separate.
func flatUrgency(s string) canonical.Urgency {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "critical"), strings.Contains(s, "panic"):
		return canonical.UrgencyCritical
	case strings.Contains(s, "stat"):
		return canonical.UrgencyStat
	case strings.Contains(s, "urgent"), strings.Contains(s, "asap"):
		return canonical.UrgencyUrgent
	default:
		return canonical.UrgencyRoutine
	}
}

// flatMessageType maps the flat convention's loose type labels onto the
// canonical enum.
func flatMessageType(s string) canonical.MessageType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "critical"):
		return canonical.TypeCriticalAlert
	case strings.Contains(s, "order"):
		return canonical.TypeLabOrderRequest
	case strings.Contains(s, "lab"), strings.Contains(s, "result"):
		return canonical.TypeLabResult
	case strings.Contains(s, "refill"), strings.Contains(s, "medication"):
		return canonical.TypeMedicationRefill
	case strings.Contains(s, "follow"):
		return canonical.TypeFollowUpNeeded
	case strings.Contains(s, "call"):
		return canonical.TypeCallOffice
	case strings.Contains(s, "referral"):
		return canonical.TypeReferralRequest
	case strings.Contains(s, "schedul"), strings.Contains(s, "study"):
		return canonical.TypeScheduleStudy
	default:
		return canonical.TypeGeneralNotification
	}
}
