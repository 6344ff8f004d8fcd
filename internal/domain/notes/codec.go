package notes

import (
	"strconv"
	"strings"
)

// Headings open every structured note body.
const (
	HeadingPathwayTransfer       = "PATHWAY TRANSFER"
	HeadingMedicationPrescribed  = "MEDICATION PRESCRIPTION"
	HeadingInvestigationRequest  = "INVESTIGATION REQUEST"
	HeadingReschedule            = "APPOINTMENT RESCHEDULED"
	HeadingAppointmentTypeChange = "APPOINTMENT TYPE CHANGED"
)

// Field labels used in the stored text form.
const (
	labelTransferFrom     = "Transfer From"
	labelTransferTo       = "Transfer To"
	labelPriority         = "Priority"
	labelReason           = "Reason for Transfer"
	labelRationale        = "Clinical Rationale"
	labelAdditionalNotes  = "Additional Notes"
	labelPSAVelocity      = "PSA Velocity"
	labelAppointment      = "Appointment"
	labelRecurring        = "Recurring Follow-up"
	labelMedication       = "Medication"
	labelDischargeSummary = "Discharge Summary"
	labelAutoGenerated    = "Auto-generated"
	labelInvestigation    = "Investigation"
	labelIndication       = "Clinical Indication"
	labelNotes            = "Notes"
	labelAppointmentType  = "Appointment Type"
	labelPreviousDate     = "Previous Date"
	labelNewDate          = "New Date"
	labelNewTime          = "New Time"
	labelChangeReason     = "Reason"
	labelPreviousType     = "Previous Type"
	labelNewType          = "New Type"
)

// continuation prefixes the extra lines of a multi-line value.
const continuation = "  "

type textWriter struct{ b strings.Builder }

func (w *textWriter) line(s string) {
	if w.b.Len() > 0 {
		w.b.WriteByte('\n')
	}
	w.b.WriteString(s)
}

func (w *textWriter) field(label, value string) {
	if value == "" {
		return
	}
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	w.line(label + ": " + lines[0])
	for _, l := range lines[1:] {
		w.line(continuation + l)
	}
}

func (w *textWriter) list(label string, values []string) {
	for _, v := range values {
		w.field(label, v)
	}
}

// Encode renders content to the labeled-line text stored in the database.
func Encode(c Content) string {
	var w textWriter
	switch v := c.(type) {
	case nil:
		return ""
	case PlainText:
		return v.Text
	case PathwayTransferPayload:
		heading := v.Heading
		if heading == "" {
			heading = HeadingPathwayTransfer
		}
		w.line(heading)
		w.field(labelTransferFrom, v.From)
		w.field(labelTransferTo, v.To)
		w.field(labelPriority, v.Priority)
		w.field(labelReason, v.Reason)
		w.field(labelRationale, v.ClinicalRationale)
		w.field(labelAdditionalNotes, v.AdditionalNotes)
		w.field(labelPSAVelocity, v.PSAVelocity)
		w.list(labelAppointment, v.Appointments)
		w.list(labelRecurring, v.RecurringAppointments)
		w.list(labelMedication, v.Medications)
		w.field(labelDischargeSummary, v.DischargeSummary)
		if v.AutoGenerated {
			w.field(labelAutoGenerated, "true")
		}
	case InvestigationRequestPayload:
		w.line(HeadingInvestigationRequest)
		w.list(labelInvestigation, v.Investigations)
		w.field(labelPriority, v.Priority)
		w.field(labelIndication, v.Indication)
		w.field(labelNotes, v.Notes)
		if v.AutoGenerated {
			w.field(labelAutoGenerated, "true")
		}
	case ReschedulePayload:
		w.line(HeadingReschedule)
		w.field(labelAppointmentType, v.AppointmentType)
		w.field(labelPreviousDate, v.PreviousDate)
		w.field(labelNewDate, v.NewDate)
		w.field(labelNewTime, v.NewTime)
		w.field(labelChangeReason, v.Reason)
	case AppointmentTypeChangePayload:
		w.line(HeadingAppointmentTypeChange)
		w.field(labelPreviousType, v.PreviousType)
		w.field(labelNewType, v.NewType)
		w.field(labelChangeReason, v.Reason)
	}
	return w.b.String()
}

type field struct {
	label string
	value string
}

// parseFields splits labeled lines into ordered fields. Lines that carry no
// known "Label: value" shape are reported through ok=false.
func parseFields(lines []string) (fields []field, ok bool) {
	for _, l := range lines {
		if strings.HasPrefix(l, continuation) && len(fields) > 0 {
			fields[len(fields)-1].value += "\n" + strings.TrimPrefix(l, continuation)
			continue
		}
		if strings.TrimSpace(l) == "" {
			continue
		}
		label, value, found := strings.Cut(l, ":")
		if !found {
			return nil, false
		}
		fields = append(fields, field{label: strings.TrimSpace(label), value: strings.TrimSpace(value)})
	}
	return fields, true
}

// Decode parses stored note text back into its variant. Text that does not
// open with a known heading is returned as PlainText, except for legacy
// transfer notes that carry a "Transfer To:" line without a heading.
func Decode(text string) Content {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	heading := strings.TrimSpace(lines[0])

	switch heading {
	case HeadingPathwayTransfer, HeadingMedicationPrescribed:
		if fields, ok := parseFields(lines[1:]); ok {
			p := decodeTransfer(fields)
			p.Heading = heading
			return p
		}
	case HeadingInvestigationRequest:
		if fields, ok := parseFields(lines[1:]); ok {
			return decodeInvestigation(fields)
		}
	case HeadingReschedule:
		if fields, ok := parseFields(lines[1:]); ok {
			return decodeReschedule(fields)
		}
	case HeadingAppointmentTypeChange:
		if fields, ok := parseFields(lines[1:]); ok {
			return decodeTypeChange(fields)
		}
	default:
		if fields, ok := parseFields(lines); ok && hasLabel(fields, labelTransferTo) {
			p := decodeTransfer(fields)
			p.Heading = HeadingPathwayTransfer
			return p
		}
	}
	return PlainText{Text: text}
}

func hasLabel(fields []field, label string) bool {
	for _, f := range fields {
		if f.label == label {
			return true
		}
	}
	return false
}

func decodeTransfer(fields []field) PathwayTransferPayload {
	var p PathwayTransferPayload
	for _, f := range fields {
		switch f.label {
		case labelTransferFrom:
			p.From = f.value
		case labelTransferTo:
			p.To = f.value
		case labelPriority:
			p.Priority = f.value
		case labelReason:
			p.Reason = f.value
		case labelRationale:
			p.ClinicalRationale = f.value
		case labelAdditionalNotes:
			p.AdditionalNotes = f.value
		case labelPSAVelocity:
			p.PSAVelocity = f.value
		case labelAppointment:
			p.Appointments = append(p.Appointments, f.value)
		case labelRecurring:
			p.RecurringAppointments = append(p.RecurringAppointments, f.value)
		case labelMedication:
			p.Medications = append(p.Medications, f.value)
		case labelDischargeSummary:
			p.DischargeSummary = f.value
		case labelAutoGenerated:
			p.AutoGenerated, _ = strconv.ParseBool(f.value)
		}
	}
	return p
}

func decodeInvestigation(fields []field) InvestigationRequestPayload {
	var p InvestigationRequestPayload
	for _, f := range fields {
		switch f.label {
		case labelInvestigation:
			p.Investigations = append(p.Investigations, f.value)
		case labelPriority:
			p.Priority = f.value
		case labelIndication:
			p.Indication = f.value
		case labelNotes:
			p.Notes = f.value
		case labelAutoGenerated:
			p.AutoGenerated, _ = strconv.ParseBool(f.value)
		}
	}
	return p
}

func decodeReschedule(fields []field) ReschedulePayload {
	var p ReschedulePayload
	for _, f := range fields {
		switch f.label {
		case labelAppointmentType:
			p.AppointmentType = f.value
		case labelPreviousDate:
			p.PreviousDate = f.value
		case labelNewDate:
			p.NewDate = f.value
		case labelNewTime:
			p.NewTime = f.value
		case labelChangeReason:
			p.Reason = f.value
		}
	}
	return p
}

func decodeTypeChange(fields []field) AppointmentTypeChangePayload {
	var p AppointmentTypeChangePayload
	for _, f := range fields {
		switch f.label {
		case labelPreviousType:
			p.PreviousType = f.value
		case labelNewType:
			p.NewType = f.value
		case labelChangeReason:
			p.Reason = f.value
		}
	}
	return p
}
