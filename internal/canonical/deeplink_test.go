package canonical

import "testing"

func TestDeepLink(t *testing.T) {
	cases := []struct {
		patientID string
		want      string
	}{
		{"E123", "clinbridge://patients/E123"},
		{"", ""},
		{UnknownPatientID, ""},
	}

	for _, tc := range cases {
		if got := DeepLink(tc.patientID); got != tc.want {
			t.Errorf("DeepLink(%q) = %q, want %q", tc.patientID, got, tc.want)
		}
	}
}

func TestAttachDeepLink_PrefersExternalID(t *testing.T) {
	m := New(TypeLabResult)
	m.Patient = Patient{MRN: "MRN123", ExternalPatientID: "E456"}
	m.AttachDeepLink()

	if m.DeepLink != "clinbridge://patients/E456" {
		t.Errorf("unexpected deep link: %q", m.DeepLink)
	}
}

func TestAttachDeepLink_FallsBackToMRN(t *testing.T) {
	m := New(TypeLabResult)
	m.Patient = Patient{MRN: "MRN123", ExternalPatientID: UnknownPatientID}
	m.AttachDeepLink()

	if m.DeepLink != "clinbridge://patients/MRN123" {
		t.Errorf("unexpected deep link: %q", m.DeepLink)
	}
}

func TestAttachDeepLink_SentinelPatientGetsNoLink(t *testing.T) {
	m := New(TypeGeneralNotification)
	m.AttachDeepLink()

	if m.DeepLink != "" {
		t.Errorf("expected empty deep link for sentinel patient, got %q", m.DeepLink)
	}
}
