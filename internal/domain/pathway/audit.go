package pathway

import (
	"strings"

	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/patient"
)

// auditContent builds the single audit record of a transition. Medication
// transitions use the prescription template; all others the plain one.
func auditContent(r *run) notes.PathwayTransferPayload {
	req := r.req
	p := notes.PathwayTransferPayload{
		Heading:           notes.HeadingPathwayTransfer,
		From:              string(r.from),
		To:                string(req.TargetPathway),
		Priority:          req.priority(),
		Reason:            req.Reason,
		ClinicalRationale: req.ClinicalRationale,
		AdditionalNotes:   req.AdditionalNotes,
	}
	if req.TargetPathway == patient.PathwayMedication {
		p.Heading = notes.HeadingMedicationPrescribed
		for _, m := range req.Medications {
			p.Medications = append(p.Medications, describeMedication(m))
		}
	}
	if v := req.PSAVelocity; v != nil && v.HasEnoughData {
		p.PSAVelocity = v.VelocityText
		if v.IsHighRisk {
			p.PSAVelocity += " (high risk)"
		}
	}
	if a := r.result.Appointment; a != nil {
		p.Appointments = append(p.Appointments, a.Summary())
	}
	if a := r.result.AutoBookedAppointment; a != nil {
		p.Appointments = append(p.Appointments, a.Summary())
	}
	for _, a := range r.result.RecurringAppointments {
		p.RecurringAppointments = append(p.RecurringAppointments, a.Summary())
	}
	if ds := req.DischargeSummary; ds != nil {
		p.DischargeSummary = ds.Summary
	}
	return p
}

func describeMedication(m Medication) string {
	parts := []string{m.Name, m.Dosage, m.Frequency}
	s := strings.Join(parts, " ")
	if m.Duration != "" {
		s += " for " + m.Duration
	}
	return s
}
