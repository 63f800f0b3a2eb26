package canonical

import "net/url"

// deepLinkScheme is the mobile app's registered URI scheme.
const deepLinkScheme = "clinbridge"

// DeepLink builds the mobile-app navigation URI for a patient chart. It
// returns an empty string for absent or sentinel identifiers so a
// placeholder patient never produces a dead link.
func DeepLink(patientID string) string {
	if patientID == "" || patientID == UnknownPatientID {
		return ""
	}
	u := url.URL{
		Scheme: deepLinkScheme,
		Host:   "patients",
		Path:   "/" + patientID,
	}
	return u.String()
}

// AttachDeepLink populates the message's deep-link field from its patient
// identity, preferring the external patient ID over the MRN. This is the
// only mutation permitted on a finalized message.
func (m *Message) AttachDeepLink() {
	id := m.Patient.ExternalPatientID
	if id == "" || id == UnknownPatientID {
		id = m.Patient.MRN
		if id == UnknownMRN {
			id = ""
		}
	}
	m.DeepLink = DeepLink(id)
}
