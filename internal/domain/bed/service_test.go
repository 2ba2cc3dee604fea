package bed

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/httpx"
	"github.com/bedtrack/bedtrack/internal/platform/realtime"
)

// =========== In-memory mocks ===========

type mockBedRepo struct {
	beds map[uuid.UUID]*Bed
}

func newMockBedRepo() *mockBedRepo {
	return &mockBedRepo{beds: make(map[uuid.UUID]*Bed)}
}

func (m *mockBedRepo) Create(_ context.Context, b *Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	for _, existing := range m.beds {
		if existing.Code == b.Code {
			return ErrDuplicateCode
		}
	}
	b.Version = 1
	clone := *b
	m.beds[b.ID] = &clone
	return nil
}

func (m *mockBedRepo) GetByID(_ context.Context, id uuid.UUID) (*Bed, error) {
	b, ok := m.beds[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *mockBedRepo) GetByCode(_ context.Context, code string) (*Bed, error) {
	for _, b := range m.beds {
		if b.Code == strings.ToUpper(code) {
			clone := *b
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockBedRepo) List(_ context.Context, f Filter) ([]*Bed, error) {
	var out []*Bed
	for _, b := range m.beds {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Ward != "" && b.Ward != f.Ward {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ward != out[j].Ward {
			return out[i].Ward < out[j].Ward
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *mockBedRepo) UpdateStatus(_ context.Context, b *Bed, expectedVersion *int64) error {
	stored, ok := m.beds[b.ID]
	if !ok {
		return ErrNotFound
	}
	if expectedVersion != nil && stored.Version != *expectedVersion {
		return ErrVersionConflict
	}
	stored.Status = b.Status
	stored.Patient = b.Patient
	stored.Version++
	b.Version = stored.Version
	return nil
}

func (m *mockBedRepo) WardOccupancy(_ context.Context, ward string) (WardOccupancy, error) {
	occ := WardOccupancy{Ward: ward}
	for _, b := range m.beds {
		if b.Ward != ward {
			continue
		}
		occ.Total++
		if b.Status == StatusOccupied {
			occ.Occupied++
		}
	}
	return occ, nil
}

type mockLogRepo struct {
	entries []*OccupancyLogEntry
	failing bool
}

func (m *mockLogRepo) Append(_ context.Context, e *OccupancyLogEntry) error {
	if m.failing {
		return context.DeadlineExceeded
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockLogRepo) List(_ context.Context, limit, offset int) ([]*OccupancyLogEntry, int, error) {
	return m.entries, len(m.entries), nil
}

func (m *mockLogRepo) ListByBed(_ context.Context, bedID uuid.UUID, limit, offset int) ([]*OccupancyLogEntry, int, error) {
	var out []*OccupancyLogEntry
	for _, e := range m.entries {
		if e.BedID == bedID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*user.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) ListByRole(_ context.Context, role string, limit, offset int) ([]*user.User, int, error) {
	var out []*user.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Create(_ context.Context, u *user.User) error {
	m.users[u.ID] = u
	return nil
}

type captured struct {
	event   string
	payload interface{}
}

type captureBroadcaster struct {
	events []captured
}

func (c *captureBroadcaster) Broadcast(event string, payload interface{}) {
	c.events = append(c.events, captured{event: event, payload: payload})
}

// syncRunner executes side effects inline so tests observe them
// deterministically.
type syncRunner struct{}

func (syncRunner) Submit(name string, fn func(ctx context.Context) error) bool {
	_ = fn(context.Background())
	return true
}

// =========== Fixtures ===========

type fixture struct {
	svc     *Service
	beds    *mockBedRepo
	logs    *mockLogRepo
	users   *mockUserRepo
	bc      *captureBroadcaster
	bed     *Bed
	patient *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	beds := newMockBedRepo()
	logs := &mockLogRepo{}
	users := &mockUserRepo{users: make(map[uuid.UUID]*user.User)}
	bc := &captureBroadcaster{}

	svc := NewService(beds, logs, users, bc, syncRunner{})

	patient := &user.User{ID: uuid.New(), Name: "Priya Raman", Email: "priya@hospital.test", Role: user.RolePatient}
	users.users[patient.ID] = patient

	b := &Bed{Code: "BED-101", Ward: "ICU", Status: StatusAvailable}
	if err := beds.Create(context.Background(), b); err != nil {
		t.Fatalf("seed bed: %v", err)
	}

	return &fixture{svc: svc, beds: beds, logs: logs, users: users, bc: bc, bed: b, patient: patient}
}

func (f *fixture) eventsNamed(name string) []captured {
	var out []captured
	for _, ev := range f.bc.events {
		if ev.event == name {
			out = append(out, ev)
		}
	}
	return out
}

// =========== Tests ===========

func TestUpdateStatus_OccupyWithValidPatient(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status:    StatusOccupied,
		PatientID: &f.patient.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Status != StatusOccupied {
		t.Errorf("expected status occupied, got %s", got.Status)
	}
	if got.Patient == nil || got.Patient.ID != f.patient.ID {
		t.Errorf("expected populated occupant, got %+v", got.Patient)
	}
	if got.Patient != nil && got.Patient.Name != "Priya Raman" {
		t.Errorf("expected occupant details populated, got %+v", got.Patient)
	}

	updates := f.eventsNamed(realtime.EventBedUpdated)
	if len(updates) != 1 {
		t.Fatalf("expected 1 bed-updated broadcast, got %d", len(updates))
	}
	payload := updates[0].payload.(map[string]interface{})
	if payload["previousStatus"] != StatusAvailable {
		t.Errorf("expected previousStatus available, got %v", payload["previousStatus"])
	}

	if len(f.logs.entries) != 1 {
		t.Fatalf("expected 1 occupancy log entry, got %d", len(f.logs.entries))
	}
	if f.logs.entries[0].StatusChange != ChangeAssigned {
		t.Errorf("expected statusChange assigned, got %s", f.logs.entries[0].StatusChange)
	}
	if len(f.eventsNamed(realtime.EventOccupancyLogUpdated)) != 1 {
		t.Error("expected occupancy-log-updated broadcast")
	}
}

func TestUpdateStatus_OccupiedWithoutPatientRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status: StatusOccupied,
	})
	if !httpx.IsStatus(err, 400) {
		t.Fatalf("expected validation error, got %v", err)
	}

	stored, _ := f.beds.GetByID(context.Background(), f.bed.ID)
	if stored.Status != StatusAvailable {
		t.Errorf("expected bed unchanged, got %s", stored.Status)
	}
	if len(f.bc.events) != 0 {
		t.Errorf("expected no broadcasts, got %d", len(f.bc.events))
	}
}

func TestUpdateStatus_UnknownPatientRejected(t *testing.T) {
	f := newFixture(t)
	ghost := uuid.New()

	_, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status:    StatusOccupied,
		PatientID: &ghost,
	})
	if !httpx.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.bc.events) != 0 {
		t.Errorf("expected no broadcasts, got %d", len(f.bc.events))
	}
}

func TestUpdateStatus_NonPatientRoleRejected(t *testing.T) {
	f := newFixture(t)
	doctor := &user.User{ID: uuid.New(), Name: "Dr. Chen", Email: "chen@hospital.test", Role: user.RoleDoctor}
	f.users.users[doctor.ID] = doctor

	_, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status:    StatusOccupied,
		PatientID: &doctor.ID,
	})
	if !httpx.IsStatus(err, 400) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatus_InvalidStatusRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status: "broken",
	})
	if !httpx.IsStatus(err, 400) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatus_ReleaseClearsOccupant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, f.bed.ID.String(), UpdateStatusInput{
		Status: StatusOccupied, PatientID: &f.patient.ID,
	}); err != nil {
		t.Fatalf("occupy: %v", err)
	}

	got, err := f.svc.UpdateStatus(ctx, f.bed.ID.String(), UpdateStatusInput{
		Status:    StatusAvailable,
		PatientID: &f.patient.ID, // ignored for non-occupied statuses
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.Patient != nil {
		t.Errorf("expected occupant cleared, got %+v", got.Patient)
	}
	if got.Status != StatusAvailable {
		t.Errorf("expected status available, got %s", got.Status)
	}

	last := f.logs.entries[len(f.logs.entries)-1]
	if last.StatusChange != ChangeReleased {
		t.Errorf("expected statusChange released, got %s", last.StatusChange)
	}
}

func TestUpdateStatus_OccupantInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	steps := []UpdateStatusInput{
		{Status: StatusOccupied, PatientID: &f.patient.ID},
		{Status: StatusMaintenance},
		{Status: StatusAvailable},
		{Status: StatusReserved},
		{Status: StatusOccupied, PatientID: &f.patient.ID},
	}
	for i, in := range steps {
		got, err := f.svc.UpdateStatus(ctx, f.bed.ID.String(), in)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		occupied := got.Status == StatusOccupied
		hasPatient := got.Patient != nil
		if occupied != hasPatient {
			t.Errorf("step %d: invariant broken, status=%s patient=%v", i, got.Status, got.Patient)
		}
	}
}

func TestUpdateStatus_ResolvesByCode(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.UpdateStatus(context.Background(), "bed-101", UpdateStatusInput{
		Status: StatusMaintenance,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != f.bed.ID {
		t.Errorf("expected lookup by lowercased code to find the bed")
	}
	if f.logs.entries[0].StatusChange != ChangeMaintenanceStart {
		t.Errorf("expected maintenance_start, got %s", f.logs.entries[0].StatusChange)
	}
}

func TestUpdateStatus_UnknownBed(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateStatus(context.Background(), uuid.New().String(), UpdateStatusInput{
		Status: StatusAvailable,
	})
	if !httpx.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatus_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	stale := f.bed.Version - 1

	_, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status:  StatusMaintenance,
		Version: &stale,
	})
	if !httpx.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	stored, _ := f.beds.GetByID(context.Background(), f.bed.ID)
	if stored.Status != StatusAvailable {
		t.Errorf("expected no write on conflict, got %s", stored.Status)
	}
}

func TestUpdateStatus_MatchingVersionSucceeds(t *testing.T) {
	f := newFixture(t)
	current := f.bed.Version

	got, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status:  StatusMaintenance,
		Version: &current,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != current+1 {
		t.Errorf("expected version bump to %d, got %d", current+1, got.Version)
	}
}

func TestUpdateStatus_NoVersionLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, f.bed.ID.String(), UpdateStatusInput{Status: StatusReserved}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := f.svc.UpdateStatus(ctx, f.bed.ID.String(), UpdateStatusInput{Status: StatusMaintenance})
	if err != nil {
		t.Fatalf("second write without version should win: %v", err)
	}
	if got.Status != StatusMaintenance {
		t.Errorf("expected maintenance, got %s", got.Status)
	}
}

func TestUpdateStatus_LogFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.logs.failing = true

	got, err := f.svc.UpdateStatus(context.Background(), f.bed.ID.String(), UpdateStatusInput{
		Status: StatusMaintenance,
	})
	if err != nil {
		t.Fatalf("mutation must succeed despite log failure: %v", err)
	}
	if got.Status != StatusMaintenance {
		t.Errorf("expected maintenance, got %s", got.Status)
	}
	if len(f.eventsNamed(realtime.EventBedUpdated)) != 1 {
		t.Error("expected bed-updated broadcast despite log failure")
	}
	if len(f.eventsNamed(realtime.EventOccupancyLogUpdated)) != 0 {
		t.Error("expected no occupancy-log-updated broadcast when append fails")
	}
}

func TestClassifyTransition(t *testing.T) {
	cases := []struct {
		prev, next, want string
	}{
		{StatusAvailable, StatusOccupied, ChangeAssigned},
		{StatusReserved, StatusOccupied, ChangeAssigned},
		{StatusOccupied, StatusAvailable, ChangeReleased},
		{StatusAvailable, StatusMaintenance, ChangeMaintenanceStart},
		{StatusOccupied, StatusMaintenance, ChangeMaintenanceStart},
		{StatusMaintenance, StatusAvailable, ChangeMaintenanceEnd},
		{StatusAvailable, StatusReserved, ChangeReserved},
		{StatusReserved, StatusAvailable, ChangeReservationCancelled},
		{StatusAvailable, StatusAvailable, ChangeAssigned},
	}
	for _, tc := range cases {
		if got := ClassifyTransition(tc.prev, tc.next); got != tc.want {
			t.Errorf("ClassifyTransition(%s, %s) = %s, want %s", tc.prev, tc.next, got, tc.want)
		}
	}
}

func TestList_InvalidStatusRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), Filter{Status: "wrong"})
	if !httpx.IsStatus(err, 400) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestList_FiltersAndSorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, seed := range []Bed{
		{Code: "BED-201", Ward: "ER", Status: StatusAvailable},
		{Code: "BED-102", Ward: "ICU", Status: StatusMaintenance},
	} {
		b := seed
		if err := f.beds.Create(ctx, &b); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := f.svc.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 beds, got %d", len(all))
	}
	if all[0].Ward != "ER" || all[1].Code != "BED-101" {
		t.Errorf("expected ward+code ordering, got %s/%s first", all[0].Ward, all[0].Code)
	}

	icu, err := f.svc.List(ctx, Filter{Ward: "ICU", Status: StatusMaintenance})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(icu) != 1 || icu[0].Code != "BED-102" {
		t.Errorf("unexpected filtered result: %+v", icu)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateInput{Ward: "ICU"}); !httpx.IsStatus(err, 400) {
		t.Errorf("expected validation error for missing code, got %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Code: "BED-300"}); !httpx.IsStatus(err, 400) {
		t.Errorf("expected validation error for missing ward, got %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Code: "BED-300", Ward: "ER", Status: StatusOccupied}); !httpx.IsStatus(err, 400) {
		t.Errorf("expected validation error for occupied create, got %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Code: "bed-101", Ward: "ICU"}); !httpx.IsConflict(err) {
		t.Errorf("expected conflict for duplicate code, got %v", err)
	}

	b, err := f.svc.Create(ctx, CreateInput{Code: "bed-300", Ward: "ER"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Code != "BED-300" {
		t.Errorf("expected uppercased code, got %s", b.Code)
	}
	if b.Status != StatusAvailable {
		t.Errorf("expected default status available, got %s", b.Status)
	}
}
