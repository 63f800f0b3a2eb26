package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

// Parse decodes one FHIR resource or a Bundle into canonical messages. A
// Bundle fans out to one message per supported entry, preserving entry
// order. Unrecognized resource types yield an empty result, not an error;
// only syntactically invalid JSON fails.
func Parse(data []byte) ([]*canonical.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("fhir: invalid resource JSON: %w", err)
	}

	if env.ResourceType == "Bundle" {
		var bundle Bundle
		if err := json.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("fhir: invalid bundle: %w", err)
		}
		var out []*canonical.Message
		for _, entry := range bundle.Entry {
			if len(entry.Resource) == 0 {
				continue
			}
			// A malformed entry is skipped; siblings still parse.
			msgs, err := Parse(entry.Resource)
			if err != nil {
				continue
			}
			out = append(out, msgs...)
		}
		return out, nil
	}

	msg, err := parseResource(env.ResourceType, data)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	return []*canonical.Message{msg}, nil
}

// parseResource dispatches on the resourceType discriminator. The switch is
// the single place where resource support is declared; an unsupported type
// falls to the default arm and is skipped deliberately.
func parseResource(resourceType string, data []byte) (*canonical.Message, error) {
	switch resourceType {
	case "DiagnosticReport":
		var r DiagnosticReport
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("fhir: decode DiagnosticReport: %w", err)
		}
		return fromDiagnosticReport(&r), nil
	case "Observation":
		var r Observation
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("fhir: decode Observation: %w", err)
		}
		return fromObservation(&r), nil
	case "ServiceRequest":
		var r ServiceRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("fhir: decode ServiceRequest: %w", err)
		}
		return fromServiceRequest(&r), nil
	case "MedicationRequest":
		var r MedicationRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("fhir: decode MedicationRequest: %w", err)
		}
		return fromMedicationRequest(&r), nil
	case "Communication":
		var r Communication
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("fhir: decode Communication: %w", err)
		}
		return fromCommunication(&r), nil
	default:
		// Unsupported resource types are skipped so that mixed bundles
		// still yield partial results.
		return nil, nil
	}
}

func fromObservation(obs *Observation) *canonical.Message {
	msg := canonical.New(canonical.TypeLabResult)
	applyIdentity(msg, obs.ID, obs.EffectiveDateTime, obs.Issued)
	msg.Patient = patientFromReference(obs.Subject)
	if len(obs.Performer) > 0 {
		msg.Provider = providerFromReference(&obs.Performer[0], "performer")
	}

	lr := labResultFromObservation(obs)
	msg.LabResults = []canonical.LabResult{lr}
	msg.Content.Urgency = canonical.UrgencyFromFlags([]canonical.Flag{lr.Flag})

	if lr.Flag == canonical.FlagCritical {
		msg.Type = canonical.TypeCriticalAlert
		msg.Content.Subject = fmt.Sprintf("CRITICAL result: %s", lr.TestName)
	} else {
		msg.Content.Subject = fmt.Sprintf("Result: %s", lr.TestName)
	}
	msg.Content.Body = resultLine(lr)

	msg.Finalize()
	return msg
}

// labResultFromObservation extracts the value, units, formatted reference
// range, and normalized flag from a single observation.
func labResultFromObservation(obs *Observation) canonical.LabResult {
	lr := canonical.LabResult{
		TestName:       obs.Code.Label(),
		TestCode:       obs.Code.FirstCode(),
		ReferenceRange: rangeDisplay(obs.ReferenceRange),
		Flag:           canonical.FlagNormal,
		CollectionTime: obs.EffectiveDateTime,
	}

	switch {
	case obs.ValueQuantity != nil && obs.ValueQuantity.Value != nil:
		lr.Value = formatNum(*obs.ValueQuantity.Value)
		lr.Units = obs.ValueQuantity.Unit
	case obs.ValueString != "":
		lr.Value = obs.ValueString
	}

	if len(obs.Interpretation) > 0 {
		lr.Flag = canonical.FlagFromCode(obs.Interpretation[0].FirstCode())
	}
	return lr
}

func fromDiagnosticReport(rep *DiagnosticReport) *canonical.Message {
	msg := canonical.New(canonical.TypeLabResult)
	applyIdentity(msg, rep.ID, rep.EffectiveDateTime, rep.Issued)
	msg.Patient = patientFromReference(rep.Subject)
	if len(rep.Performer) > 0 {
		msg.Provider = providerFromReference(&rep.Performer[0], "performer")
	}

	var flags []canonical.Flag
	var lines []string
	for i := range rep.Contained {
		if rep.Contained[i].ResourceType != "" && rep.Contained[i].ResourceType != "Observation" {
			continue
		}
		lr := labResultFromObservation(&rep.Contained[i])
		msg.LabResults = append(msg.LabResults, lr)
		flags = append(flags, lr.Flag)
		lines = append(lines, resultLine(lr))
	}

	msg.Content.Urgency = canonical.UrgencyFromFlags(flags)
	if msg.HasCriticalResult() {
		msg.Type = canonical.TypeCriticalAlert
	}

	msg.Content.Subject = fmt.Sprintf("Diagnostic report: %s", rep.Code.Label())
	if rep.Conclusion != "" {
		lines = append(lines, rep.Conclusion)
	}
	msg.Content.Body = strings.Join(lines, "\n")

	msg.Finalize()
	return msg
}

func fromServiceRequest(req *ServiceRequest) *canonical.Message {
	isLab := false
	for _, cat := range req.Category {
		if strings.EqualFold(cat.FirstCode(), "laboratory") ||
			strings.Contains(strings.ToLower(cat.Label()), "lab") {
			isLab = true
			break
		}
	}

	var msg *canonical.Message
	if isLab {
		msg = canonical.New(canonical.TypeLabOrderRequest)
		msg.OrderDetails = &canonical.OrderDetails{
			TestName:  req.Code.Label(),
			TestCode:  req.Code.FirstCode(),
			Priority:  req.Priority,
			OrderedAt: req.AuthoredOn,
		}
		msg.Content.Subject = fmt.Sprintf("Lab order: %s", req.Code.Label())
	} else {
		msg = canonical.New(canonical.TypeScheduleStudy)
		msg.SchedulingInfo = &canonical.SchedulingInfo{
			StudyType:   req.Code.Label(),
			Priority:    req.Priority,
			RequestedAt: req.AuthoredOn,
		}
		msg.Content.Subject = fmt.Sprintf("Schedule study: %s", req.Code.Label())
	}

	applyIdentity(msg, req.ID, req.AuthoredOn, "")
	msg.Patient = patientFromReference(req.Subject)
	msg.Provider = providerFromReference(req.Requester, "requester")
	msg.Content.Urgency = canonical.UrgencyFromPriority(req.Priority)

	var notes []string
	for _, n := range req.Note {
		if n.Text != "" {
			notes = append(notes, n.Text)
		}
	}
	msg.Content.Body = strings.Join(notes, "\n")

	msg.Finalize()
	return msg
}

func fromMedicationRequest(req *MedicationRequest) *canonical.Message {
	// Refill vs. new prescription is not distinguished here; that judgment
	// belongs to the reasoning collaborator.
	msg := canonical.New(canonical.TypeMedicationRefill)
	applyIdentity(msg, req.ID, req.AuthoredOn, "")
	msg.Patient = patientFromReference(req.Subject)
	msg.Provider = providerFromReference(req.Requester, "requester")
	msg.Content.Urgency = canonical.UrgencyFromPriority(req.Priority)

	med := req.MedicationCodeableConcept.Label()
	msg.Content.Subject = fmt.Sprintf("Medication request: %s", med)

	parts := []string{med}
	for _, d := range req.DosageInstruction {
		if d.Text != "" {
			parts = append(parts, d.Text)
		}
	}
	msg.Content.Body = strings.Join(parts, " — ")

	msg.Finalize()
	return msg
}

func fromCommunication(com *Communication) *canonical.Message {
	var textParts []string
	for _, cat := range com.Category {
		if label := cat.Label(); label != "" {
			textParts = append(textParts, label)
		}
	}
	var bodyParts []string
	for _, p := range com.Payload {
		if p.ContentString != "" {
			bodyParts = append(bodyParts, p.ContentString)
		}
	}

	// Keyword routing over category and body text is best-effort only;
	// ambiguous communications default to a general notification.
	searchable := strings.ToLower(strings.Join(append(textParts, bodyParts...), " "))
	msgType := canonical.TypeGeneralNotification
	switch {
	case strings.Contains(searchable, "follow"):
		msgType = canonical.TypeFollowUpNeeded
	case strings.Contains(searchable, "call"):
		msgType = canonical.TypeCallOffice
	}

	msg := canonical.New(msgType)
	applyIdentity(msg, com.ID, com.Sent, "")
	msg.Patient = patientFromReference(com.Subject)
	msg.Provider = providerFromReference(com.Sender, "sender")
	msg.Content.Urgency = canonical.UrgencyFromPriority(com.Priority)

	subject := "Patient communication"
	if len(textParts) > 0 {
		subject = textParts[0]
	}
	msg.Content.Subject = subject
	msg.Content.Body = strings.Join(bodyParts, "\n")

	msg.Finalize()
	return msg
}

// applyIdentity sets the message ID and timestamp from source fields when
// present, leaving the generated defaults otherwise.
func applyIdentity(msg *canonical.Message, id string, times ...string) {
	if id != "" {
		msg.ID = id
	}
	for _, ts := range times {
		if ts == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			msg.Timestamp = t.UTC()
			return
		}
	}
}

// patientFromReference derives patient identity from a resource reference by
// stripping the "Patient/" prefix and splitting the display name on
// whitespace. Absent references produce the sentinel patient so downstream
// code never branches on nil.
func patientFromReference(ref *Reference) canonical.Patient {
	if ref == nil || (ref.Reference == "" && ref.Display == "") {
		return canonical.SentinelPatient()
	}

	p := canonical.SentinelPatient()
	if id := referenceID(ref.Reference); id != "" {
		p.ExternalPatientID = id
		p.MRN = id
	}
	first, last := splitName(ref.Display)
	if first != "" {
		p.FirstName = first
	}
	if last != "" {
		p.LastName = last
	}
	return p
}

func providerFromReference(ref *Reference, role string) canonical.Provider {
	if ref == nil || (ref.Reference == "" && ref.Display == "") {
		return canonical.Provider{}
	}
	return canonical.Provider{
		ID:   referenceID(ref.Reference),
		Name: ref.Display,
		Role: role,
	}
}

// referenceID strips the resource-type prefix from a reference string:
// "Patient/123" yields "123". A bare ID passes through unchanged.
func referenceID(ref string) string {
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// splitName splits a display name on whitespace into (first, last). A
// single-token name is treated as a last name.
func splitName(display string) (first, last string) {
	fields := strings.Fields(display)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func resultLine(lr canonical.LabResult) string {
	line := fmt.Sprintf("%s: %s %s", lr.TestName, lr.Value, lr.Units)
	if lr.ReferenceRange != "" {
		line += fmt.Sprintf(" (ref %s)", lr.ReferenceRange)
	}
	if lr.Flag != canonical.FlagNormal {
		line += fmt.Sprintf(" [%s]", lr.Flag)
	}
	return strings.TrimSpace(line)
}
