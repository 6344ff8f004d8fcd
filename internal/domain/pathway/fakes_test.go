package pathway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
	"github.com/ehr/uropathway/internal/platform/auth"
)

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

var errStore = errors.New("store unavailable")

// eventLog records the order in which collaborators are called.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) count(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, x := range l.events {
		if x == e {
			n++
		}
	}
	return n
}

func (l *eventLog) index(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, x := range l.events {
		if x == e {
			return i
		}
	}
	return -1
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// memApptRepo backs a real scheduling.Service.
type memApptRepo struct {
	mu     sync.Mutex
	log    *eventLog
	items  []*scheduling.Appointment
	failOn func(a *scheduling.Appointment) error
}

func (m *memApptRepo) Create(_ context.Context, a *scheduling.Appointment) error {
	m.log.add("book:" + string(a.Type))
	if m.failOn != nil {
		if err := m.failOn(a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = testNow
	m.items = append(m.items, a)
	return nil
}

func (m *memApptRepo) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, scheduling.ErrNotFound
}

func (m *memApptRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Appointment
	for _, a := range m.items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memApptRepo) UpdateStatus(context.Context, uuid.UUID, string) error { return nil }

func (m *memApptRepo) byType(t scheduling.AppointmentType) []*scheduling.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Appointment
	for _, a := range m.items {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type fakePatients struct {
	log        *eventLog
	appts      *memApptRepo
	patients   map[uuid.UUID]*patient.Patient
	updates    []patient.PathwayUpdate
	summaries  []*patient.DischargeSummary
	updateErr  error
	summaryErr error
	getErr     error
	onUpdate   func()
}

func (f *fakePatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePatients) UpdatePathway(_ context.Context, id uuid.UUID, u patient.PathwayUpdate) (*patient.PathwayUpdateResult, error) {
	f.log.add("update_pathway")
	f.updates = append(f.updates, u)
	if f.onUpdate != nil {
		f.onUpdate()
	}
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	p, ok := f.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	change := &patient.PathwayChange{PatientID: id, FromPathway: p.CarePathway, ToPathway: u.Pathway}
	p.CarePathway = u.Pathway

	res := &patient.PathwayUpdateResult{Change: change}
	if !u.SkipAutoBooking {
		var date time.Time
		if u.AppointmentStartDate != nil {
			date = *u.AppointmentStartDate
		} else {
			interval := u.AppointmentInterval
			if interval == 0 {
				interval = patient.DefaultFollowUpInterval
			}
			date = scheduling.AddMonths(scheduling.DateOnly(testNow), interval)
		}
		t := u.AppointmentTime
		if t == "" {
			t = patient.DefaultFollowUpTime
		}
		a := &scheduling.Appointment{
			ID: uuid.New(), PatientID: id, Date: date, Time: t,
			Type: scheduling.TypeFollowUp, ClinicianID: u.ChangedBy, ClinicianName: u.ChangedByName,
			Status: scheduling.StatusBooked,
		}
		f.appts.mu.Lock()
		f.appts.items = append(f.appts.items, a)
		f.appts.mu.Unlock()
		res.AutoBookedAppointment = a
	}
	return res, nil
}

func (f *fakePatients) CreateDischargeSummary(_ context.Context, id uuid.UUID, ds *patient.DischargeSummary) error {
	f.log.add("discharge_summary")
	if f.summaryErr != nil {
		return f.summaryErr
	}
	ds.PatientID = id
	f.summaries = append(f.summaries, ds)
	return nil
}

type fakeNotes struct {
	mu    sync.Mutex
	log   *eventLog
	items []*notes.ClinicalNote
	// failures is the number of AddNote calls that fail before one succeeds;
	// negative fails forever.
	failures int
	listErr  error
	// honourCancel makes AddNote fail on a cancelled context.
	honourCancel bool
}

func (f *fakeNotes) AddNote(ctx context.Context, id uuid.UUID, n notes.NewNote) (*notes.ClinicalNote, error) {
	f.log.add("note")
	if f.honourCancel && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return nil, errStore
	}
	note := &notes.ClinicalNote{
		ID: uuid.New(), PatientID: id, Type: n.Type, Content: n.Content,
		AuthorName: n.Author.Name, AuthorRole: n.Author.Role,
		CreatedAt: testNow.Add(time.Duration(len(f.items)) * time.Minute),
	}
	f.items = append([]*notes.ClinicalNote{note}, f.items...)
	return note, nil
}

func (f *fakeNotes) ListNotes(_ context.Context, id uuid.UUID) ([]*notes.ClinicalNote, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notes.ClinicalNote
	for _, n := range f.items {
		if n.PatientID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotes) transferNotes() []*notes.ClinicalNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notes.ClinicalNote
	for _, n := range f.items {
		if n.Type == notes.TypePathwayTransfer {
			out = append(out, n)
		}
	}
	return out
}

type fakeMeetings struct {
	items []*mdt.Meeting
	err   error
}

func (f *fakeMeetings) ListMeetings(context.Context, uuid.UUID) ([]*mdt.Meeting, error) {
	return f.items, f.err
}

type fakeIdentity struct {
	user auth.User
	err  error
}

func (f fakeIdentity) CurrentUser(context.Context) (auth.User, error) { return f.user, f.err }

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]string
	err     error
	unlocks int
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) Unlock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocks++
	if f.held[key] != token {
		return errors.New("not owner")
	}
	delete(f.held, key)
	return nil
}

type fakeReview struct {
	mu          sync.Mutex
	escalations []Escalation
	err         error
}

func (f *fakeReview) Escalate(_ context.Context, e Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.escalations = append(f.escalations, e)
	return nil
}

type fixture struct {
	svc       *Service
	log       *eventLog
	patientID uuid.UUID
	patients  *fakePatients
	appts     *memApptRepo
	notes     *fakeNotes
	meetings  *fakeMeetings
	locker    *fakeLocker
	review    *fakeReview
	sleeps    []time.Duration
}

var testUser = auth.User{ID: "clin-42", DisplayName: "Dr Ford Prefect"}

func newFixture() *fixture {
	log := &eventLog{}
	appts := &memApptRepo{log: log}
	id := uuid.New()
	f := &fixture{
		log:       log,
		patientID: id,
		appts:     appts,
		patients: &fakePatients{
			log:   log,
			appts: appts,
			patients: map[uuid.UUID]*patient.Patient{
				id: {ID: id, MRN: "URO-1", FirstName: "Arthur", LastName: "Dent", CarePathway: patient.PathwayOPDQueue},
			},
		},
		notes:    &fakeNotes{log: log},
		meetings: &fakeMeetings{},
		locker:   &fakeLocker{held: make(map[string]string)},
		review:   &fakeReview{},
	}
	f.svc = f.build(fakeIdentity{user: testUser})
	return f
}

func (f *fixture) build(identity Identity) *Service {
	svc := NewService(Deps{
		Patients:     f.patients,
		Appointments: Appointments{Svc: scheduling.NewService(f.appts)},
		Notes:        f.notes,
		Meetings:     f.meetings,
		Identity:     identity,
		Locker:       f.locker,
		Review:       f.review,
	}, Options{MaxAttempts: 3, Backoff: 10 * time.Millisecond, LockTTL: time.Minute}, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	svc.sleep = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }
	return svc
}

func (f *fixture) withIdentity(identity Identity) *fixture {
	f.svc = f.build(identity)
	return f
}
