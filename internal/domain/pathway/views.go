package pathway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
)

// refresh re-reads the views that depend on the transition. Reads run
// concurrently; a failed read is logged and leaves its view empty.
func (s *Service) refresh(ctx context.Context, r *run) *Views {
	v := &Views{}
	id := r.patientID
	var g errgroup.Group

	logged := func(view string, err error) error {
		err = fmt.Errorf("refresh %s: %w", view, err)
		r.log.Warn().Err(err).Str("step", string(StepRefresh)).Msg("view refresh failed")
		return err
	}
	g.Go(func() error {
		p, err := s.deps.Patients.GetPatient(ctx, id)
		if err != nil {
			return logged("patient", err)
		}
		v.Patient = p
		return nil
	})
	g.Go(func() error {
		items, err := s.deps.Appointments.ListAppointments(ctx, id)
		if err != nil {
			return logged("appointments", err)
		}
		v.Appointments = items
		return nil
	})
	g.Go(func() error {
		items, err := s.deps.Meetings.ListMeetings(ctx, id)
		if err != nil {
			return logged("mdt meetings", err)
		}
		v.Meetings = items
		return nil
	})
	g.Go(func() error {
		items, err := s.deps.Notes.ListNotes(ctx, id)
		if err != nil {
			return logged("notes", err)
		}
		v.Timeline = notes.Reconcile(items)
		return nil
	})

	if err := g.Wait(); err != nil {
		r.result.Warnings = append(r.result.Warnings, "some views could not be refreshed")
	}
	if v.Patient != nil {
		v.Stage = PipelineStage(v.Patient, v.Appointments, v.Meetings, s.now())
	}
	return v
}

// Pipeline derives the current pipeline stage of a patient.
func (s *Service) Pipeline(ctx context.Context, id uuid.UUID) (Stage, error) {
	var (
		p        *patient.Patient
		appts    []*scheduling.Appointment
		meetings []*mdt.Meeting
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.deps.Patients.GetPatient(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		appts, err = s.deps.Appointments.ListAppointments(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		meetings, err = s.deps.Meetings.ListMeetings(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	return PipelineStage(p, appts, meetings, s.now()), nil
}
