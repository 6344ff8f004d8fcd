package pathway

import (
	"time"

	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
)

// Stage is the patient's position in the urology pipeline. It is derived
// on read and never stored.
type Stage string

const (
	StageReferral       Stage = "referral"
	StageOPD            Stage = "opd"
	StageTreatment      Stage = "treatment"
	StageMDTReview      Stage = "mdt_review"
	StagePostOpFollowUp Stage = "post_op_follow_up"
	StageDischarged     Stage = "discharged"
)

// PipelineStage derives the stage from the patient's pathway, appointments
// and MDT meetings. Earlier rules win.
func PipelineStage(p *patient.Patient, appts []*scheduling.Appointment, meetings []*mdt.Meeting, now time.Time) Stage {
	switch p.CarePathway {
	case patient.PathwayDischarge:
		return StageDischarged
	case patient.PathwayPostOpTransfer, patient.PathwayPostOpFollowup:
		return StagePostOpFollowUp
	}
	for _, m := range meetings {
		if m.Upcoming(now) {
			return StageMDTReview
		}
	}
	switch p.CarePathway {
	case patient.PathwayActiveMonitoring, patient.PathwayActiveSurveillance, patient.PathwayMedication,
		patient.PathwaySurgery, patient.PathwayRadiotherapy:
		return StageTreatment
	case patient.PathwayOPDQueue:
		return StageOPD
	}
	for _, a := range appts {
		if a.Type == scheduling.TypeUrologist && a.Status != scheduling.StatusCancelled {
			return StageOPD
		}
	}
	return StageReferral
}
