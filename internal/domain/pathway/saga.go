package pathway

import (
	"context"
)

// SagaState is the orchestration phase reported in a Result.
type SagaState string

const (
	StateValidating               SagaState = "validating"
	StateBookingPrecondition      SagaState = "booking_precondition"
	StateDischargeSummary         SagaState = "discharge_summary"
	StateCommitting               SagaState = "committing"
	StateEnriching                SagaState = "enriching"
	StateRefreshing               SagaState = "refreshing"
	StateDone                     SagaState = "done"
	StateAwaitingDischargeSummary SagaState = "awaiting_discharge_summary"
)

// Step names one unit of work inside a saga state.
type Step string

const (
	StepValidating            Step = "validating"
	StepLocking               Step = "locking"
	StepSurgeryBooking        Step = "surgery_booking"
	StepDischargeSummary      Step = "discharge_summary"
	StepPathwayWrite          Step = "pathway_write"
	StepRecurringAppointments Step = "recurring_appointments"
	StepAuditNote             Step = "audit_note"
	StepRefresh               Step = "refresh"
)

type Policy string

const (
	// PolicyFatal aborts the transition on the first failure.
	PolicyFatal Policy = "fatal"
	// PolicyBestEffort retries with backoff, then records the failure and
	// escalates it for manual review. The transition still succeeds.
	PolicyBestEffort Policy = "best_effort"
)

type step struct {
	name   Step
	state  SagaState
	policy Policy
	// kind is the error kind reported when a fatal step fails.
	kind    Kind
	applies func(*run) bool
	exec    func(context.Context, *run) error
}

// steps is the ordered plan every transition follows. Steps whose applies
// returns false are skipped.
func (s *Service) steps() []step {
	return []step{
		{
			name: StepSurgeryBooking, state: StateBookingPrecondition, policy: PolicyFatal, kind: KindBooking,
			applies: func(r *run) bool { return r.req.TargetPathway == surgeryPathway },
			exec:    s.bookSurgery,
		},
		{
			name: StepDischargeSummary, state: StateDischargeSummary, policy: PolicyFatal, kind: KindCommit,
			applies: func(r *run) bool { return needsDischargeSummary(r.req.TargetPathway) },
			exec:    s.createDischargeSummary,
		},
		{
			name: StepPathwayWrite, state: StateCommitting, policy: PolicyFatal, kind: KindCommit,
			applies: always,
			exec:    s.writePathway,
		},
		{
			name: StepRecurringAppointments, state: StateEnriching, policy: PolicyBestEffort, kind: KindEnrichment,
			applies: func(r *run) bool { return r.req.RecurrenceMonths > 0 && r.recurrenceBase != nil },
			exec:    s.bookRecurring,
		},
		{
			name: StepAuditNote, state: StateEnriching, policy: PolicyBestEffort, kind: KindEnrichment,
			applies: always,
			exec:    s.writeAuditNote,
		},
	}
}

func always(*run) bool { return true }
