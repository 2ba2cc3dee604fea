package alert

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bedtrack/bedtrack/internal/domain/bed"
	"github.com/bedtrack/bedtrack/internal/domain/request"
	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/httpx"
	"github.com/bedtrack/bedtrack/internal/platform/realtime"
)

// =========== In-memory mocks ===========

type mockAlertRepo struct {
	alerts map[uuid.UUID]*Alert
	order  []uuid.UUID
}

func newMockAlertRepo() *mockAlertRepo {
	return &mockAlertRepo{alerts: make(map[uuid.UUID]*Alert)}
}

func (m *mockAlertRepo) Create(_ context.Context, a *Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	clone := *a
	m.alerts[a.ID] = &clone
	m.order = append(m.order, a.ID)
	return nil
}

func (m *mockAlertRepo) ListForRole(_ context.Context, role string, limit, offset int) ([]*Alert, int, error) {
	var out []*Alert
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.alerts[m.order[i]]
		if a.Targets(role) {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, len(out), nil
}

func (m *mockAlertRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *mockAlertRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.Read = true
	return nil
}

// mockBedRepo only answers occupancy queries; the engine never touches the
// rest of the interface.
type mockBedRepo struct {
	occ bed.WardOccupancy
}

func (m *mockBedRepo) Create(context.Context, *bed.Bed) error { return nil }
func (m *mockBedRepo) GetByID(context.Context, uuid.UUID) (*bed.Bed, error) {
	return nil, bed.ErrNotFound
}
func (m *mockBedRepo) GetByCode(context.Context, string) (*bed.Bed, error) {
	return nil, bed.ErrNotFound
}
func (m *mockBedRepo) List(context.Context, bed.Filter) ([]*bed.Bed, error) { return nil, nil }
func (m *mockBedRepo) UpdateStatus(context.Context, *bed.Bed, *int64) error { return nil }
func (m *mockBedRepo) WardOccupancy(_ context.Context, ward string) (bed.WardOccupancy, error) {
	occ := m.occ
	occ.Ward = ward
	return occ, nil
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

func newEngine(repo *mockAlertRepo, beds *mockBedRepo, bc *captureBroadcaster) *Engine {
	return NewEngine(repo, beds, bc, 0.9, zerolog.Nop())
}

// =========== Engine tests ===========

func TestEngine_MaintenanceRaisesAlert(t *testing.T) {
	repo := newMockAlertRepo()
	bc := &captureBroadcaster{}
	e := newEngine(repo, &mockBedRepo{occ: bed.WardOccupancy{Total: 10, Occupied: 2}}, bc)

	b := &bed.Bed{ID: uuid.New(), Code: "BED-101", Ward: "ICU", Status: bed.StatusMaintenance}
	e.BedStatusChanged(context.Background(), b, bed.StatusAvailable)

	if len(repo.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(repo.alerts))
	}
	a := repo.alerts[repo.order[0]]
	if a.Type != TypeMaintenanceNeeded {
		t.Errorf("expected maintenance_needed, got %s", a.Type)
	}
	if a.BedID == nil || *a.BedID != b.ID {
		t.Errorf("expected alert to reference the bed")
	}
	if len(bc.events) != 1 || bc.events[0].event != realtime.EventAlertCreated {
		t.Errorf("expected alert-created broadcast, got %+v", bc.events)
	}
}

func TestEngine_MaintenanceNotRepeatedForSameStatus(t *testing.T) {
	repo := newMockAlertRepo()
	e := newEngine(repo, &mockBedRepo{occ: bed.WardOccupancy{Total: 10, Occupied: 2}}, &captureBroadcaster{})

	b := &bed.Bed{ID: uuid.New(), Code: "BED-101", Ward: "ICU", Status: bed.StatusMaintenance}
	e.BedStatusChanged(context.Background(), b, bed.StatusMaintenance)

	if len(repo.alerts) != 0 {
		t.Errorf("expected no alert when bed was already in maintenance, got %d", len(repo.alerts))
	}
}

func TestEngine_OccupancyThreshold(t *testing.T) {
	cases := []struct {
		name     string
		occ      bed.WardOccupancy
		expected bool
	}{
		{"below threshold", bed.WardOccupancy{Total: 10, Occupied: 8}, false},
		{"at threshold", bed.WardOccupancy{Total: 10, Occupied: 9}, true},
		{"full ward", bed.WardOccupancy{Total: 10, Occupied: 10}, true},
		{"empty ward", bed.WardOccupancy{Total: 0, Occupied: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockAlertRepo()
			e := newEngine(repo, &mockBedRepo{occ: tc.occ}, &captureBroadcaster{})

			b := &bed.Bed{ID: uuid.New(), Code: "BED-101", Ward: "ICU", Status: bed.StatusOccupied}
			e.BedStatusChanged(context.Background(), b, bed.StatusAvailable)

			raised := len(repo.alerts) == 1
			if raised != tc.expected {
				t.Errorf("expected raised=%v, got %d alerts", tc.expected, len(repo.alerts))
			}
			if raised && repo.alerts[repo.order[0]].Type != TypeOccupancyHigh {
				t.Errorf("expected occupancy_high, got %s", repo.alerts[repo.order[0]].Type)
			}
		})
	}
}

func TestEngine_RequestCreatedSeverity(t *testing.T) {
	repo := newMockAlertRepo()
	bc := &captureBroadcaster{}
	e := newEngine(repo, &mockBedRepo{}, bc)

	r := &request.Request{
		ID:       uuid.New(),
		Patient:  &user.Ref{ID: uuid.New(), Name: "Omar Haddad"},
		Location: "ER entrance",
		Priority: request.PriorityCritical,
		Status:   request.StatusPending,
	}
	e.RequestCreated(context.Background(), r)

	if len(repo.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(repo.alerts))
	}
	a := repo.alerts[repo.order[0]]
	if a.Type != TypeRequestPending {
		t.Errorf("expected request_pending, got %s", a.Type)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", a.Severity)
	}
	if a.RequestID == nil || *a.RequestID != r.ID {
		t.Error("expected alert to reference the request")
	}
	if !a.Targets(user.RoleManager) || a.Targets(user.RoleNurse) {
		t.Errorf("expected supervisor targeting, got %v", a.TargetRoles)
	}
}

// =========== Service tests ===========

func TestService_ListForRoleFilters(t *testing.T) {
	repo := newMockAlertRepo()
	svc := NewService(repo)
	ctx := context.Background()

	repo.Create(ctx, &Alert{Type: TypeRequestPending, Severity: SeverityMedium,
		Message: "supervisors only", TargetRoles: []string{user.RoleManager, user.RoleHospitalAdmin}})
	repo.Create(ctx, &Alert{Type: TypeBedEmergency, Severity: SeverityHigh,
		Message: "everyone"})

	forNurse, total, err := svc.ListForRole(ctx, user.RoleNurse, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || forNurse[0].Message != "everyone" {
		t.Errorf("expected nurse to see only untargeted alerts, got %+v", forNurse)
	}

	forManager, total, err := svc.ListForRole(ctx, user.RoleManager, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Errorf("expected manager to see both alerts, got %d", len(forManager))
	}
}

func TestService_DismissIdempotent(t *testing.T) {
	repo := newMockAlertRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a := &Alert{Type: TypeBedEmergency, Severity: SeverityHigh, Message: "code blue"}
	repo.Create(ctx, a)

	if err := svc.Dismiss(ctx, a.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := svc.Dismiss(ctx, a.ID); err != nil {
		t.Errorf("second dismiss should be a no-op, got %v", err)
	}
	stored, _ := repo.GetByID(ctx, a.ID)
	if !stored.Read {
		t.Error("expected alert marked read")
	}
}

func TestService_DismissUnknown(t *testing.T) {
	svc := NewService(newMockAlertRepo())

	err := svc.Dismiss(context.Background(), uuid.New())
	if !httpx.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
