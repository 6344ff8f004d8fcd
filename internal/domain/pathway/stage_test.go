package pathway

import (
	"testing"

	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
)

func TestPipelineStage(t *testing.T) {
	upcoming := []*mdt.Meeting{{MeetingDate: testNow.AddDate(0, 0, 3), Status: mdt.StatusScheduled}}
	past := []*mdt.Meeting{{MeetingDate: testNow.AddDate(0, 0, -3), Status: mdt.StatusCompleted}}
	urology := []*scheduling.Appointment{{Type: scheduling.TypeUrologist, Status: scheduling.StatusBooked}}
	cancelled := []*scheduling.Appointment{{Type: scheduling.TypeUrologist, Status: scheduling.StatusCancelled}}

	tests := []struct {
		name     string
		pathway  patient.CarePathway
		appts    []*scheduling.Appointment
		meetings []*mdt.Meeting
		want     Stage
	}{
		{"new referral", "", nil, nil, StageReferral},
		{"referral with cancelled clinic", "", cancelled, nil, StageReferral},
		{"referral with clinic booked", "", urology, nil, StageOPD},
		{"opd queue", patient.PathwayOPDQueue, nil, past, StageOPD},
		{"surveillance", patient.PathwayActiveSurveillance, nil, past, StageTreatment},
		{"radiotherapy", patient.PathwayRadiotherapy, nil, nil, StageTreatment},
		{"mdt pending", patient.PathwaySurgery, nil, upcoming, StageMDTReview},
		{"post-op", patient.PathwayPostOpFollowup, nil, upcoming, StagePostOpFollowUp},
		{"discharged", patient.PathwayDischarge, urology, upcoming, StageDischarged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &patient.Patient{CarePathway: tt.pathway}
			if got := PipelineStage(p, tt.appts, tt.meetings, testNow); got != tt.want {
				t.Errorf("PipelineStage() = %s, want %s", got, tt.want)
			}
		})
	}
}
