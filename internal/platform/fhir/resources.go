// Package fhir decodes FHIR R4 JSON clinical resources into the canonical
// message model. Dispatch is a closed switch over the resourceType
// discriminator; adding support for a new resource type requires touching
// the switch, so no type can be silently half-handled.
package fhir

import "encoding/json"

// envelope is the minimal decode used to read the resourceType discriminator
// before dispatching to a typed unmarshal.
type envelope struct {
	ResourceType string `json:"resourceType"`
}

// Coding is one code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a coded value with optional free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Label returns the most specific human-readable label: explicit text, else
// the first coding's display, else the first coding's code.
func (c *CodeableConcept) Label() string {
	if c == nil {
		return ""
	}
	if c.Text != "" {
		return c.Text
	}
	for _, coding := range c.Coding {
		if coding.Display != "" {
			return coding.Display
		}
	}
	for _, coding := range c.Coding {
		if coding.Code != "" {
			return coding.Code
		}
	}
	return ""
}

// FirstCode returns the first coding code, or the text when no coding is
// present.
func (c *CodeableConcept) FirstCode() string {
	if c == nil {
		return ""
	}
	for _, coding := range c.Coding {
		if coding.Code != "" {
			return coding.Code
		}
	}
	return c.Text
}

// Quantity is a measured value with unit.
type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Code  string   `json:"code,omitempty"`
}

// Reference points at another resource, e.g. "Patient/123".
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// ReferenceRange bounds a normal interval for an observation value.
type ReferenceRange struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
	Text string    `json:"text,omitempty"`
}

// Dosage carries free-text dosage instructions.
type Dosage struct {
	Text string `json:"text,omitempty"`
}

// Payload is one content item of a Communication.
type Payload struct {
	ContentString string `json:"contentString,omitempty"`
}

// Observation is a single measured or asserted clinical value.
type Observation struct {
	ResourceType      string            `json:"resourceType"`
	ID                string            `json:"id,omitempty"`
	Status            string            `json:"status,omitempty"`
	Code              *CodeableConcept  `json:"code,omitempty"`
	Subject           *Reference        `json:"subject,omitempty"`
	Performer         []Reference       `json:"performer,omitempty"`
	EffectiveDateTime string            `json:"effectiveDateTime,omitempty"`
	Issued            string            `json:"issued,omitempty"`
	ValueQuantity     *Quantity         `json:"valueQuantity,omitempty"`
	ValueString       string            `json:"valueString,omitempty"`
	Interpretation    []CodeableConcept `json:"interpretation,omitempty"`
	ReferenceRange    []ReferenceRange  `json:"referenceRange,omitempty"`
}

// DiagnosticReport groups observations under a clinical conclusion.
type DiagnosticReport struct {
	ResourceType      string           `json:"resourceType"`
	ID                string           `json:"id,omitempty"`
	Status            string           `json:"status,omitempty"`
	Code              *CodeableConcept `json:"code,omitempty"`
	Subject           *Reference       `json:"subject,omitempty"`
	Performer         []Reference      `json:"performer,omitempty"`
	EffectiveDateTime string           `json:"effectiveDateTime,omitempty"`
	Issued            string           `json:"issued,omitempty"`
	Conclusion        string           `json:"conclusion,omitempty"`
	Contained         []Observation    `json:"contained,omitempty"`
	Result            []Reference      `json:"result,omitempty"`
}

// ServiceRequest asks for a procedure, study, or lab panel.
type ServiceRequest struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Status       string            `json:"status,omitempty"`
	Intent       string            `json:"intent,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	Category     []CodeableConcept `json:"category,omitempty"`
	Code         *CodeableConcept  `json:"code,omitempty"`
	Subject      *Reference        `json:"subject,omitempty"`
	Requester    *Reference        `json:"requester,omitempty"`
	AuthoredOn   string            `json:"authoredOn,omitempty"`
	Note         []struct {
		Text string `json:"text,omitempty"`
	} `json:"note,omitempty"`
}

// MedicationRequest asks for a prescription or refill.
type MedicationRequest struct {
	ResourceType              string           `json:"resourceType"`
	ID                        string           `json:"id,omitempty"`
	Status                    string           `json:"status,omitempty"`
	Priority                  string           `json:"priority,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   *Reference       `json:"subject,omitempty"`
	Requester                 *Reference       `json:"requester,omitempty"`
	AuthoredOn                string           `json:"authoredOn,omitempty"`
	DosageInstruction         []Dosage         `json:"dosageInstruction,omitempty"`
}

// Communication is a free-form message about a patient.
type Communication struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id,omitempty"`
	Status       string            `json:"status,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	Category     []CodeableConcept `json:"category,omitempty"`
	Subject      *Reference        `json:"subject,omitempty"`
	Sender       *Reference        `json:"sender,omitempty"`
	Sent         string            `json:"sent,omitempty"`
	Payload      []Payload         `json:"payload,omitempty"`
}

// Bundle is a collection of resources; entries are decoded lazily so one
// malformed entry never aborts its siblings.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry wraps one raw resource inside a bundle.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}
