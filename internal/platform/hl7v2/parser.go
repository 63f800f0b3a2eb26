package hl7v2

import (
	"fmt"
	"strings"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

// Parse decodes raw segmented-record text into a canonical message. It never
// returns a nil message: malformed input degrades to a sentinel-valued
// general notification, and the error is informational so that strict
// channels can reject while the auto-detect channel stays lenient.
func Parse(raw string) (*canonical.Message, error) {
	rec, err := Decode(raw)
	if err != nil {
		msg := canonical.New(canonical.TypeGeneralNotification)
		msg.Content.Subject = "Unparseable segmented record"
		msg.Content.Body = "The inbound record contained no recognizable segments."
		msg.Finalize()
		return msg, err
	}
	return ToCanonical(rec), nil
}

// ToCanonical extracts a canonical message from a decoded record using the
// fixed positional mappings for the recognized segment types (PID, ORC, OBR,
// OBX). Missing segments degrade to sentinel or empty values.
func ToCanonical(rec *Record) *canonical.Message {
	msg := canonical.New(canonical.TypeGeneralNotification)

	if rec.ControlID != "" {
		msg.ID = rec.ControlID
	}
	if !rec.Timestamp.IsZero() {
		msg.Timestamp = rec.Timestamp.UTC()
	}

	if pid := rec.Segment("PID"); pid != nil {
		msg.Patient = extractPatient(pid)
	}

	orc := rec.Segment("ORC")
	obr := rec.Segment("OBR")
	msg.Provider = extractProvider(orc, obr)

	priority := orderPriority(orc, obr)
	if orc != nil || obr != nil {
		msg.OrderDetails = extractOrder(orc, obr, priority)
	}

	var flags []canonical.Flag
	for _, obx := range rec.AllSegments("OBX") {
		lr := extractResult(obx)
		msg.LabResults = append(msg.LabResults, lr)
		flags = append(flags, lr.Flag)
	}

	msg.Content.Urgency = canonical.Classify(flags, priority)
	msg.Type = classifyType(msg)
	msg.Content.Subject, msg.Content.Body = summarize(msg)

	msg.Finalize()
	return msg
}

// extractPatient maps PID fields: PID-2.1 external ID, PID-3.1 MRN, PID-5
// family^given name, PID-7 date of birth, PID-8 administrative sex.
func extractPatient(pid *Segment) canonical.Patient {
	p := canonical.SentinelPatient()

	if mrn := pid.Component(3, 1); mrn != "" {
		p.MRN = mrn
	}
	if ext := pid.Component(2, 1); ext != "" {
		p.ExternalPatientID = ext
	} else if p.MRN != canonical.UnknownMRN {
		p.ExternalPatientID = p.MRN
	}
	if family := pid.Component(5, 1); family != "" {
		p.LastName = family
	}
	if given := pid.Component(5, 2); given != "" {
		p.FirstName = given
	}
	if dob := pid.Field(7); dob != "" {
		p.DOB = dob
	}
	p.Sex = pid.Field(8)
	return p
}

// extractProvider reads the ordering provider from ORC-12, falling back to
// OBR-16. Both encode id^family^given.
func extractProvider(orc, obr *Segment) canonical.Provider {
	var src *Segment
	var idx int
	switch {
	case orc != nil && orc.Field(12) != "":
		src, idx = orc, 12
	case obr != nil && obr.Field(16) != "":
		src, idx = obr, 16
	default:
		return canonical.Provider{}
	}

	name := strings.TrimSpace(src.Component(idx, 3) + " " + src.Component(idx, 2))
	return canonical.Provider{
		ID:   src.Component(idx, 1),
		Name: name,
		Role: "ordering",
	}
}

// orderPriority returns the source priority token from OBR-5, falling back
// to the priority component of ORC-7 (quantity/timing, component 6).
func orderPriority(orc, obr *Segment) string {
	if obr != nil {
		if p := obr.Field(5); p != "" {
			return p
		}
	}
	if orc != nil {
		if p := orc.Component(7, 6); p != "" {
			return p
		}
	}
	return ""
}

func extractOrder(orc, obr *Segment, priority string) *canonical.OrderDetails {
	od := &canonical.OrderDetails{Priority: priority}

	if orc != nil {
		od.OrderID = orc.Component(2, 1)
	}
	if obr != nil {
		if od.OrderID == "" {
			od.OrderID = obr.Component(2, 1)
		}
		od.TestCode = obr.Component(4, 1)
		od.TestName = obr.Component(4, 2)
		od.OrderedAt = FormatISO(obr.Field(7))
	}
	return od
}

// extractResult maps one OBX segment: OBX-3 code^name, OBX-5 value, OBX-6
// units, OBX-7 reference range, OBX-8 abnormal flags, OBX-14 collection time.
func extractResult(obx *Segment) canonical.LabResult {
	name := obx.Component(3, 2)
	if name == "" {
		name = obx.Component(3, 1)
	}
	return canonical.LabResult{
		TestCode:       obx.Component(3, 1),
		TestName:       name,
		Value:          obx.Field(5),
		Units:          obx.Component(6, 1),
		ReferenceRange: obx.Field(7),
		Flag:           canonical.FlagFromCode(obx.Component(8, 1)),
		CollectionTime: FormatISO(obx.Field(14)),
	}
}

// classifyType picks the message type: results present means a lab result
// (a critical alert when any value is critical), an order without results is
// an order request, anything else is a general notification.
func classifyType(msg *canonical.Message) canonical.MessageType {
	switch {
	case msg.HasCriticalResult():
		return canonical.TypeCriticalAlert
	case len(msg.LabResults) > 0:
		return canonical.TypeLabResult
	case msg.OrderDetails != nil:
		return canonical.TypeLabOrderRequest
	default:
		return canonical.TypeGeneralNotification
	}
}

func summarize(msg *canonical.Message) (subject, body string) {
	patient := strings.TrimSpace(msg.Patient.FirstName + " " + msg.Patient.LastName)

	switch msg.Type {
	case canonical.TypeCriticalAlert, canonical.TypeLabResult:
		label := "Lab results"
		if msg.Type == canonical.TypeCriticalAlert {
			label = "CRITICAL lab results"
		}
		subject = fmt.Sprintf("%s for %s", label, patient)
		var lines []string
		for _, lr := range msg.LabResults {
			line := fmt.Sprintf("%s: %s %s", lr.TestName, lr.Value, lr.Units)
			if lr.ReferenceRange != "" {
				line += fmt.Sprintf(" (ref %s)", lr.ReferenceRange)
			}
			if lr.Flag != canonical.FlagNormal {
				line += fmt.Sprintf(" [%s]", lr.Flag)
			}
			lines = append(lines, strings.TrimSpace(line))
		}
		body = strings.Join(lines, "\n")
	case canonical.TypeLabOrderRequest:
		subject = fmt.Sprintf("Lab order for %s", patient)
		if msg.OrderDetails.TestName != "" {
			body = fmt.Sprintf("Ordered: %s", msg.OrderDetails.TestName)
		}
	default:
		subject = fmt.Sprintf("Clinical message for %s", patient)
	}
	return subject, body
}
