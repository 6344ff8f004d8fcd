package pathway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/uropathway/internal/domain/labs"
	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
	"github.com/ehr/uropathway/internal/platform/auth"
)

const surgeryPathway = patient.PathwaySurgery

// ErrNoClinician is returned when no clinician identity is available for a
// step that books or records on their behalf.
var ErrNoClinician = errors.New("current user identity is required")

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond
	DefaultLockTTL     = 30 * time.Second
)

// Deps are the collaborators of the orchestrator. Locker and Review are
// optional.
type Deps struct {
	Patients     PatientStore
	Appointments AppointmentStore
	Notes        NotesStore
	Meetings     MeetingStore
	Identity     Identity
	Locker       Locker
	Review       ReviewQueue
}

type Options struct {
	// MaxAttempts bounds tries per best-effort step, including the first.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles after each.
	Backoff time.Duration
	LockTTL time.Duration
}

type Service struct {
	deps  Deps
	opts  Options
	log   zerolog.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

func NewService(deps Deps, opts Options, log zerolog.Logger) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	return &Service{
		deps:  deps,
		opts:  opts,
		log:   log.With().Str("component", "pathway").Logger(),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// run carries the state of one transition between steps.
type run struct {
	patientID uuid.UUID
	req       *Request
	result    *Result
	log       zerolog.Logger

	user     *auth.User
	role     string
	from     patient.CarePathway
	followUp *time.Time

	recurrenceBase *time.Time
	recurrenceTime string
	// pending holds recurring occurrences not yet booked; nil until expanded.
	pending []scheduling.Occurrence
	expanded bool
}

// Transition validates req and moves the patient onto req.TargetPathway,
// running the fatal steps in order and then the best-effort enrichment.
// The returned Result is always non-nil. A non-nil error is a *Error.
func (s *Service) Transition(ctx context.Context, patientID uuid.UUID, req Request) (*Result, error) {
	res := &Result{
		PatientID:          patientID,
		Pathway:            req.TargetPathway,
		Stage:              StateValidating,
		EnrichmentFailures: []EnrichmentFailure{},
		Warnings:           []string{},
	}
	r := &run{
		patientID: patientID,
		req:       &req,
		result:    res,
		log: s.log.With().
			Str("patient_id", patientID.String()).
			Str("pathway", string(req.TargetPathway)).
			Logger(),
		role: auth.PrimaryRole(ctx),
	}

	if patientID == uuid.Nil {
		return s.fail(r, validationError("patient_id is required"))
	}
	if err := Validate(&req, s.now()); err != nil {
		var verr *Error
		if !errors.As(err, &verr) {
			verr = newError(KindValidation, StepValidating, err)
		}
		return s.fail(r, verr)
	}
	s.checkPSA(r)

	if needsDischargeSummary(req.TargetPathway) && req.DischargeSummary == nil {
		res.Stage = StateAwaitingDischargeSummary
		res.RequiresDischargeSummary = true
		r.log.Info().Str("step", string(StepDischargeSummary)).Msg("discharge summary required before transition")
		return res, nil
	}

	release, err := s.acquire(ctx, r)
	if err != nil {
		return s.fail(r, err)
	}
	defer release()

	for _, st := range s.steps() {
		if !st.applies(r) {
			continue
		}
		res.Stage = st.state
		if st.policy == PolicyBestEffort {
			// Enrichment follows the commit and must not be cut short by
			// the caller going away.
			s.enrich(context.WithoutCancel(ctx), r, st)
			continue
		}
		r.log.Debug().Str("step", string(st.name)).Msg("running step")
		if err := st.exec(ctx, r); err != nil {
			return s.fail(r, newError(st.kind, st.name, err))
		}
	}
	release()

	res.Stage = StateRefreshing
	res.Views = s.refresh(context.WithoutCancel(ctx), r)

	res.Stage = StateDone
	res.Success = true
	r.log.Info().
		Str("from", string(r.from)).
		Int("enrichment_failures", len(res.EnrichmentFailures)).
		Msg("pathway transition completed")
	return res, nil
}

func (s *Service) fail(r *run, err *Error) (*Result, error) {
	r.result.Error = err.Error()
	r.log.Warn().Err(err).Str("step", string(err.Step)).Str("kind", string(err.Kind)).Msg("pathway transition failed")
	return r.result, err
}

// acquire takes the per-patient lock when a locker is configured. The
// returned release is safe to call more than once.
func (s *Service) acquire(ctx context.Context, r *run) (func(), *Error) {
	if s.deps.Locker == nil {
		return func() {}, nil
	}
	key := "patient:" + r.patientID.String()
	token, ok, err := s.deps.Locker.TryLock(ctx, key, s.opts.LockTTL)
	if err != nil {
		return nil, newError(KindConflict, StepLocking, fmt.Errorf("acquire lock: %w", err))
	}
	if !ok {
		return nil, newError(KindConflict, StepLocking, ErrLocked)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := s.deps.Locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				r.log.Warn().Err(err).Str("step", string(StepLocking)).Msg("release lock")
			}
		})
	}, nil
}

// enrich runs a best-effort step with bounded exponential backoff and
// escalates it for review when every attempt fails.
func (s *Service) enrich(ctx context.Context, r *run, st step) {
	delay := s.opts.Backoff
	var err error
	attempts := 0
	for attempts < s.opts.MaxAttempts {
		attempts++
		if err = st.exec(ctx, r); err == nil {
			return
		}
		r.log.Warn().Err(err).Str("step", string(st.name)).Int("attempt", attempts).Msg("enrichment step failed")
		if attempts < s.opts.MaxAttempts {
			s.sleep(delay)
			delay *= 2
		}
	}

	failure := EnrichmentFailure{
		Step:     st.name,
		Detail:   r.detail(st.name),
		Error:    err.Error(),
		Attempts: attempts,
	}
	r.log.Error().Err(newError(KindEnrichment, st.name, err)).
		Str("step", string(st.name)).
		Int("attempts", attempts).
		Msg("enrichment step abandoned")

	if s.deps.Review != nil {
		esc := Escalation{
			PatientID: r.patientID,
			Pathway:   r.req.TargetPathway,
			Step:      st.name,
			Detail:    failure.Detail,
			Error:     failure.Error,
			Attempts:  attempts,
		}
		if r.user != nil {
			esc.ChangedBy = r.user.ID
		}
		if err := s.deps.Review.Escalate(ctx, esc); err != nil {
			r.log.Error().Err(err).Str("step", string(st.name)).Msg("escalate enrichment failure")
		} else {
			failure.Escalated = true
		}
	}
	r.result.EnrichmentFailures = append(r.result.EnrichmentFailures, failure)
}

func (r *run) detail(name Step) string {
	if name != StepRecurringAppointments || len(r.pending) == 0 {
		return ""
	}
	dates := make([]string, len(r.pending))
	for i, occ := range r.pending {
		dates[i] = occ.Date.Format(scheduling.DateLayout)
	}
	return "unbooked: " + strings.Join(dates, ", ")
}

func (s *Service) checkPSA(r *run) {
	v := r.req.PSAVelocity
	if v == nil || !v.HasEnoughData || !v.IsHighRisk {
		return
	}
	r.result.Warnings = append(r.result.Warnings,
		fmt.Sprintf("PSA velocity %s exceeds %.2f ng/mL/year", v.VelocityText, labs.HighRiskVelocity))
	r.log.Info().Float64("psa_velocity", v.Velocity).Msg("high-risk PSA velocity")
}

func (s *Service) currentUser(ctx context.Context, r *run) (auth.User, error) {
	if r.user != nil {
		return *r.user, nil
	}
	u, err := s.deps.Identity.CurrentUser(ctx)
	if err != nil {
		return auth.User{}, fmt.Errorf("resolve current user: %w", err)
	}
	if strings.TrimSpace(u.ID) == "" {
		return auth.User{}, ErrNoClinician
	}
	if u.DisplayName == "" {
		u.DisplayName = u.ID
	}
	r.user = &u
	return u, nil
}

func (s *Service) bookSurgery(ctx context.Context, r *run) error {
	user, err := s.currentUser(ctx, r)
	if err != nil {
		return err
	}
	date, err := scheduling.ParseDate(r.req.SurgeryDate)
	if err != nil {
		return err
	}
	a, err := s.deps.Appointments.BookAppointment(ctx, r.patientID, scheduling.BookingRequest{
		Date:          date,
		Time:          r.req.SurgeryTime,
		ClinicianID:   user.ID,
		ClinicianName: user.DisplayName,
		Type:          scheduling.TypeSurgery,
		Notes:         r.req.Reason,
		Priority:      r.req.priority(),
	})
	if err != nil {
		return fmt.Errorf("book surgery appointment: %w", err)
	}
	r.result.Appointment = a
	return nil
}

func (s *Service) createDischargeSummary(ctx context.Context, r *run) error {
	user, err := s.currentUser(ctx, r)
	if err != nil {
		return err
	}
	in := r.req.DischargeSummary
	date, err := scheduling.ParseDate(in.DischargeDate)
	if err != nil {
		return err
	}
	err = s.deps.Patients.CreateDischargeSummary(ctx, r.patientID, &patient.DischargeSummary{
		Summary:              in.Summary,
		DischargeDate:        date,
		FollowUpInstructions: in.FollowUpInstructions,
		GPLetterRequired:     in.GPLetterRequired,
		CreatedBy:            user.DisplayName,
	})
	if err != nil {
		return fmt.Errorf("create discharge summary: %w", err)
	}
	return nil
}

func (s *Service) writePathway(ctx context.Context, r *run) error {
	user, err := s.currentUser(ctx, r)
	if err != nil {
		return err
	}
	req := r.req
	u := patient.PathwayUpdate{
		Pathway:         req.TargetPathway,
		Reason:          req.Reason,
		Notes:           req.ClinicalRationale,
		SkipAutoBooking: !acceptsFollowUp(req.TargetPathway),
		ChangedBy:       user.ID,
		ChangedByName:   user.DisplayName,
	}
	if acceptsFollowUp(req.TargetPathway) {
		if req.FollowUpDate != "" {
			d, err := scheduling.ParseDate(req.FollowUpDate)
			if err != nil {
				return err
			}
			u.AppointmentStartDate = &d
		}
		u.AppointmentTime = req.FollowUpTime
		u.AppointmentInterval = req.RecurrenceMonths
	}

	out, err := s.deps.Patients.UpdatePathway(ctx, r.patientID, u)
	if err != nil {
		return fmt.Errorf("update pathway: %w", err)
	}
	if out.Change != nil {
		r.from = out.Change.FromPathway
	}
	auto := out.AutoBookedAppointment
	r.result.AutoBookedAppointment = auto

	// The series starts from the caller's date when given, otherwise from
	// the store's auto-booked appointment.
	switch {
	case u.AppointmentStartDate != nil:
		r.recurrenceBase = u.AppointmentStartDate
		r.recurrenceTime = req.FollowUpTime
		if r.recurrenceTime == "" && auto != nil {
			r.recurrenceTime = auto.Time
		}
	case auto != nil:
		base := auto.Date
		r.recurrenceBase = &base
		r.recurrenceTime = auto.Time
	}
	if r.recurrenceTime == "" {
		r.recurrenceTime = patient.DefaultFollowUpTime
	}
	return nil
}

// bookRecurring books the occurrences still pending, so a retry never
// re-books one that already succeeded.
func (s *Service) bookRecurring(ctx context.Context, r *run) error {
	if !r.expanded {
		series, err := scheduling.Expand(*r.recurrenceBase, r.recurrenceTime, r.req.RecurrenceMonths)
		if err != nil {
			return err
		}
		for occ := range series {
			r.pending = append(r.pending, occ)
		}
		r.expanded = true
	}

	var remaining []scheduling.Occurrence
	var errs []error
	for _, occ := range r.pending {
		a, err := s.deps.Appointments.BookAppointment(ctx, r.patientID, scheduling.BookingRequest{
			Date:          occ.Date,
			Time:          occ.Time,
			ClinicianID:   r.user.ID,
			ClinicianName: r.user.DisplayName,
			Type:          scheduling.TypeFollowUp,
			Subtype:       "recurring",
			Notes:         fmt.Sprintf("Recurring %d-monthly follow-up for %s", r.req.RecurrenceMonths, r.req.TargetPathway),
		})
		if err != nil {
			remaining = append(remaining, occ)
			errs = append(errs, fmt.Errorf("%s: %w", occ.Date.Format(scheduling.DateLayout), err))
			continue
		}
		r.result.RecurringAppointments = append(r.result.RecurringAppointments, a)
	}
	r.pending = remaining
	return errors.Join(errs...)
}

func (s *Service) writeAuditNote(ctx context.Context, r *run) error {
	n, err := s.deps.Notes.AddNote(ctx, r.patientID, notes.NewNote{
		Type:    notes.TypePathwayTransfer,
		Content: auditContent(r),
		Author:  notes.Author{Name: r.user.DisplayName, Role: r.role},
	})
	if err != nil {
		return fmt.Errorf("add audit note: %w", err)
	}
	r.result.AuditNote = n
	return nil
}
