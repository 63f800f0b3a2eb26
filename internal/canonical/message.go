// Package canonical defines the normalized internal representation of an
// inbound clinical message. Every parser in the system converges on the
// Message type defined here; downstream collaborators (the reasoning engine,
// chat delivery) consume only this shape and never see source formats.
package canonical

import (
	"time"

	"github.com/google/uuid"
)

// MessageType classifies a canonical message by its clinical intent.
type MessageType string

const (
	TypeLabResult           MessageType = "lab_result"
	TypeLabOrderRequest     MessageType = "lab_order_request"
	TypeFollowUpNeeded      MessageType = "follow_up_needed"
	TypeScheduleStudy       MessageType = "schedule_study"
	TypeCallOffice          MessageType = "call_office"
	TypeMedicationRefill    MessageType = "medication_refill"
	TypeReferralRequest     MessageType = "referral_request"
	TypeCriticalAlert       MessageType = "critical_alert"
	TypeGeneralNotification MessageType = "general_notification"
)

// Sentinel values substituted when a source omits identity fields. Parsers
// never fail on missing identity; downstream code detects placeholders by
// exact match against these constants.
const (
	UnknownMRN       = "UNKNOWN"
	UnknownPatientID = "UNKNOWN"
	UnknownName      = "Unknown"
)

// Patient identifies the subject of a message.
type Patient struct {
	MRN               string `json:"mrn"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	DOB               string `json:"dob,omitempty"`
	Sex               string `json:"sex,omitempty"`
	ExternalPatientID string `json:"externalPatientId"`
}

// SentinelPatient returns the placeholder patient used when source data
// carries no patient identity at all.
func SentinelPatient() Patient {
	return Patient{
		MRN:               UnknownMRN,
		FirstName:         UnknownName,
		LastName:          UnknownName,
		ExternalPatientID: UnknownPatientID,
	}
}

// IsSentinel reports whether the patient record is the placeholder produced
// by a degraded parse rather than real source identity.
func (p Patient) IsSentinel() bool {
	return p.MRN == UnknownMRN && p.ExternalPatientID == UnknownPatientID
}

// Provider identifies the ordering or referring clinician. All fields may be
// empty when the source lacks provider data.
type Provider struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// LabResult is a single observed value within a lab message.
type LabResult struct {
	TestName       string `json:"testName"`
	TestCode       string `json:"testCode,omitempty"`
	Value          string `json:"value"`
	Units          string `json:"units,omitempty"`
	ReferenceRange string `json:"referenceRange,omitempty"`
	Flag           Flag   `json:"flag"`
	CollectionTime string `json:"collectionTime,omitempty"`
}

// OrderDetails carries order metadata for order-type messages.
type OrderDetails struct {
	OrderID     string `json:"orderId,omitempty"`
	TestName    string `json:"testName,omitempty"`
	TestCode    string `json:"testCode,omitempty"`
	Priority    string `json:"priority,omitempty"`
	OrderedAt   string `json:"orderedAt,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// SchedulingInfo carries study/appointment metadata for scheduling messages.
type SchedulingInfo struct {
	StudyType  string `json:"studyType,omitempty"`
	Priority   string `json:"priority,omitempty"`
	RequestedAt string `json:"requestedAt,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Content is the human-facing payload of a canonical message. Urgency is
// always set, never empty.
type Content struct {
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Urgency Urgency `json:"urgency"`
}

// Message is the unified internal representation of any inbound clinical
// message. It is immutable after Finalize except for DeepLink, which a later
// pipeline stage may populate.
type Message struct {
	ID             string          `json:"messageId"`
	Timestamp      time.Time       `json:"timestamp"`
	Type           MessageType     `json:"messageType"`
	Patient        Patient         `json:"patient"`
	Provider       Provider        `json:"provider"`
	Content        Content         `json:"content"`
	LabResults     []LabResult     `json:"labResults,omitempty"`
	OrderDetails   *OrderDetails   `json:"orderDetails,omitempty"`
	SchedulingInfo *SchedulingInfo `json:"schedulingInfo,omitempty"`
	DeepLink       string          `json:"deepLink,omitempty"`
}

// New returns a message with generated ID, processing-time timestamp,
// sentinel patient, and routine urgency. Parsers overwrite fields the source
// actually provides, so absent data degrades to these defaults instead of
// nil checks downstream.
func New(msgType MessageType) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      msgType,
		Patient:   SentinelPatient(),
		Content:   Content{Urgency: UrgencyRoutine},
	}
}

// Finalize enforces the message-level invariants before the message leaves
// a parser:
//
//   - a message with any critical-flagged lab result is forced to critical
//     urgency, regardless of what the parser derived from priority fields;
//   - an unset urgency becomes routine;
//   - an unset ID or timestamp gets generated defaults.
//
// The critical-flag rule is the safety contract of the surrounding decision
// system and must not be overridable by any caller.
func (m *Message) Finalize() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Content.Urgency == "" {
		m.Content.Urgency = UrgencyRoutine
	}
	for _, lr := range m.LabResults {
		if lr.Flag == FlagCritical {
			m.Content.Urgency = UrgencyCritical
			break
		}
	}
}

// HasCriticalResult reports whether any contained lab result carries the
// critical flag.
func (m *Message) HasCriticalResult() bool {
	for _, lr := range m.LabResults {
		if lr.Flag == FlagCritical {
			return true
		}
	}
	return false
}
