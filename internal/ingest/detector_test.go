package ingest

import (
	"testing"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

func TestDetect_FHIRResource(t *testing.T) {
	det, err := Detect([]byte(`{"resourceType": "Observation", "id": "obs-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Format != FormatFHIR {
		t.Errorf("expected fhir, got %q", det.Format)
	}
}

func TestDetect_EmbeddedSegmentedText(t *testing.T) {
	for _, alias := range []string{"hl7_message", "hl7", "raw_message", "message"} {
		payload := `{"` + alias + `": "MSH|^~\\&|App|Fac|||20240101||ORU^R01|X|P|2.5\rPID|1||MRN1"}`
		det, err := Detect([]byte(payload))
		if err != nil {
			t.Fatalf("alias %s: unexpected error: %v", alias, err)
		}
		if det.Format != FormatHL7 {
			t.Errorf("alias %s: expected hl7v2, got %q", alias, det.Format)
		}
		if det.Segmented == "" {
			t.Errorf("alias %s: expected unwrapped segmented text", alias)
		}
	}
}

func TestDetect_RawSegmentedText(t *testing.T) {
	det, err := Detect([]byte("MSH|^~\\&|App|Fac|||20240101||ORU^R01|X|P|2.5\rPID|1||MRN1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Format != FormatHL7 {
		t.Errorf("expected hl7v2, got %q", det.Format)
	}
}

func TestDetect_CanonicalPassthrough(t *testing.T) {
	payload := `{
		"messageId": "msg-9",
		"messageType": "lab_result",
		"patient": {"mrn": "MRN1", "externalPatientId": "E1"},
		"content": {"subject": "Result", "body": "", "urgency": "urgent"}
	}`

	det, err := Detect([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Format != FormatCanonical {
		t.Fatalf("expected canonical, got %q", det.Format)
	}
	if det.Canonical.ID != "msg-9" {
		t.Errorf("expected ID 'msg-9', got %q", det.Canonical.ID)
	}
	if det.Canonical.Content.Urgency != canonical.UrgencyUrgent {
		t.Errorf("expected urgent urgency, got %q", det.Canonical.Content.Urgency)
	}
}

func TestDetect_FlatKeyConvention(t *testing.T) {
	payload := `{
		"patient_mrn": "E123",
		"patient_first_name": "John",
		"patient_last_name": "Doe",
		"message_type": "lab_result",
		"subject": "Potassium result",
		"body": "Potassium 7.1 mEq/L",
		"urgency": "stat"
	}`

	det, err := Detect([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Format != FormatFlat {
		t.Fatalf("expected flat, got %q", det.Format)
	}

	msg := det.Canonical
	if msg.Patient.MRN != "E123" {
		t.Errorf("expected MRN 'E123', got %q", msg.Patient.MRN)
	}
	if msg.Content.Urgency != canonical.UrgencyStat {
		t.Errorf("expected stat urgency, got %q", msg.Content.Urgency)
	}
	if msg.Type != canonical.TypeLabResult {
		t.Errorf("expected lab_result, got %q", msg.Type)
	}
	if msg.ID == "" {
		t.Error("expected generated message ID")
	}
}

func TestDetect_FlatUrgencyKeywords(t *testing.T) {
	cases := []struct {
		urgency string
		want    canonical.Urgency
	}{
		{"critical value", canonical.UrgencyCritical},
		{"PANIC", canonical.UrgencyCritical},
		{"stat", canonical.UrgencyStat},
		{"very urgent", canonical.UrgencyUrgent},
		{"asap please", canonical.UrgencyUrgent},
		{"whenever", canonical.UrgencyRoutine},
		{"", canonical.UrgencyRoutine},
	}

	for _, tc := range cases {
		if got := flatUrgency(tc.urgency); got != tc.want {
			t.Errorf("flatUrgency(%q) = %q, want %q", tc.urgency, got, tc.want)
		}
	}
}

func TestDetect_FlatLabResultCarriesFlag(t *testing.T) {
	payload := `{
		"patient_mrn": "E123",
		"message_type": "lab_result",
		"urgency": "routine",
		"test_name": "Potassium",
		"test_value": "7.1",
		"test_units": "mEq/L",
		"abnormal_flag": "HH"
	}`

	det, err := Detect([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := det.Canonical
	if len(msg.LabResults) != 1 || msg.LabResults[0].Flag != canonical.FlagCritical {
		t.Fatalf("expected critical lab result, got %+v", msg.LabResults)
	}
	// Finalize must override the routine urgency claimed by the source.
	if msg.Content.Urgency != canonical.UrgencyCritical {
		t.Errorf("expected critical urgency, got %q", msg.Content.Urgency)
	}
}

func TestDetect_Unrecognized(t *testing.T) {
	for _, payload := range []string{
		`{"foo": "bar"}`,
		`plain text that is not a record`,
		``,
		`   `,
	} {
		if _, err := Detect([]byte(payload)); err == nil {
			t.Errorf("payload %q: expected error", payload)
		}
	}
}

func TestDetect_InvalidJSON(t *testing.T) {
	if _, err := Detect([]byte(`{"broken":`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestFlatMessageType(t *testing.T) {
	cases := []struct {
		in   string
		want canonical.MessageType
	}{
		{"lab_result", canonical.TypeLabResult},
		{"critical_lab", canonical.TypeCriticalAlert},
		{"lab_order", canonical.TypeLabOrderRequest},
		{"medication_refill", canonical.TypeMedicationRefill},
		{"follow_up", canonical.TypeFollowUpNeeded},
		{"call_office", canonical.TypeCallOffice},
		{"referral", canonical.TypeReferralRequest},
		{"schedule_study", canonical.TypeScheduleStudy},
		{"", canonical.TypeGeneralNotification},
		{"misc", canonical.TypeGeneralNotification},
	}

	for _, tc := range cases {
		if got := flatMessageType(tc.in); got != tc.want {
			t.Errorf("flatMessageType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
