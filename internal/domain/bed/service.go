package bed

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/auth"
	"github.com/bedtrack/bedtrack/internal/platform/httpx"
	"github.com/bedtrack/bedtrack/internal/platform/realtime"
)

// Runner dispatches best-effort side effects off the request path.
type Runner interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// AlertNotifier is told about committed bed mutations so alert rules can
// react to them. Implementations must not block.
type AlertNotifier interface {
	BedStatusChanged(ctx context.Context, b *Bed, previous string)
}

type Service struct {
	beds   Repository
	logs   LogRepository
	users  user.Repository
	bc     realtime.Broadcaster
	runner Runner
	alerts AlertNotifier
}

func NewService(beds Repository, logs LogRepository, users user.Repository,
	bc realtime.Broadcaster, runner Runner) *Service {
	return &Service{beds: beds, logs: logs, users: users, bc: bc, runner: runner}
}

// SetAlertNotifier attaches the alert engine. Optional; wired after both
// services exist.
func (s *Service) SetAlertNotifier(n AlertNotifier) { s.alerts = n }

type CreateInput struct {
	Code   string `json:"code"`
	Ward   string `json:"ward"`
	Status string `json:"status"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Bed, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, httpx.Validation("code is required")
	}
	if strings.TrimSpace(in.Ward) == "" {
		return nil, httpx.Validation("ward is required")
	}
	if in.Status == "" {
		in.Status = StatusAvailable
	}
	if !ValidStatus(in.Status) {
		return nil, httpx.Validation("invalid status %q", in.Status)
	}
	if in.Status == StatusOccupied {
		return nil, httpx.Validation("a new bed cannot be created as occupied")
	}

	b := &Bed{Code: strings.ToUpper(in.Code), Ward: in.Ward, Status: in.Status}
	if err := s.beds.Create(ctx, b); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, httpx.Conflict("bed code %s already exists", b.Code)
		}
		return nil, httpx.Persistence("create bed", err)
	}
	return b, nil
}

// Get resolves a bed by uuid or, failing that, by uppercased code.
func (s *Service) Get(ctx context.Context, key string) (*Bed, error) {
	b, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) resolve(ctx context.Context, key string) (*Bed, error) {
	var b *Bed
	var err error
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		b, err = s.beds.GetByID(ctx, id)
	} else {
		b, err = s.beds.GetByCode(ctx, strings.ToUpper(key))
	}
	if errors.Is(err, ErrNotFound) {
		return nil, httpx.NotFound("bed %s not found", key)
	}
	if err != nil {
		return nil, httpx.Persistence("load bed", err)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Bed, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, httpx.Validation("invalid status %q", f.Status)
	}
	beds, err := s.beds.List(ctx, f)
	if err != nil {
		return nil, httpx.Persistence("list beds", err)
	}
	if beds == nil {
		beds = []*Bed{}
	}
	return beds, nil
}

type UpdateStatusInput struct {
	Status    string     `json:"status"`
	PatientID *uuid.UUID `json:"patientId"`
	Version   *int64     `json:"version"`
}

// UpdateStatus applies a status change to the bed identified by key (uuid or
// code). The occupant invariant is enforced here: occupied requires an
// existing patient-role user, every other status clears the occupant. After
// the write commits, the updated bed is broadcast and the occupancy log and
// alert rules run as supervised side effects.
func (s *Service) UpdateStatus(ctx context.Context, key string, in UpdateStatusInput) (*Bed, error) {
	if !ValidStatus(in.Status) {
		return nil, httpx.Validation("invalid status %q", in.Status)
	}

	b, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if in.Version != nil && *in.Version != b.Version {
		return nil, httpx.Conflict("bed version %d is stale, current is %d", *in.Version, b.Version)
	}

	if in.Status == StatusOccupied {
		if in.PatientID == nil {
			return nil, httpx.Validation("patientId is required when status is occupied")
		}
		occupant, err := s.users.GetByID(ctx, *in.PatientID)
		if errors.Is(err, user.ErrNotFound) {
			return nil, httpx.NotFound("patient %s not found", in.PatientID)
		}
		if err != nil {
			return nil, httpx.Persistence("load patient", err)
		}
		if occupant.Role != user.RolePatient {
			return nil, httpx.Validation("user %s is not a patient", occupant.ID)
		}
		ref := occupant.Ref()
		b.Patient = &ref
	} else {
		// Any supplied patientId is ignored for non-occupied statuses.
		b.Patient = nil
	}

	previous := b.Status
	b.Status = in.Status

	if err := s.beds.UpdateStatus(ctx, b, in.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, httpx.Conflict("bed was modified concurrently")
		}
		return nil, httpx.Persistence("update bed status", err)
	}

	s.bc.Broadcast(realtime.EventBedUpdated, map[string]interface{}{
		"bed":            b,
		"previousStatus": previous,
	})

	s.submitSideEffects(ctx, b, previous)
	return b, nil
}

func (s *Service) submitSideEffects(ctx context.Context, b *Bed, previous string) {
	entry := &OccupancyLogEntry{
		BedID:        b.ID,
		BedCode:      b.Code,
		StatusChange: ClassifyTransition(previous, b.Status),
	}
	if actor, ok := auth.UserIDFromContext(ctx); ok {
		if id, err := uuid.Parse(actor); err == nil {
			entry.UserID = &id
		}
	}

	s.runner.Submit("occupancy-log", func(ctx context.Context) error {
		if err := s.logs.Append(ctx, entry); err != nil {
			return err
		}
		s.bc.Broadcast(realtime.EventOccupancyLogUpdated, map[string]interface{}{"log": entry})
		return nil
	})

	if s.alerts != nil {
		snapshot := *b
		s.runner.Submit("alert-rules", func(ctx context.Context) error {
			s.alerts.BedStatusChanged(ctx, &snapshot, previous)
			return nil
		})
	}
}

func (s *Service) ListLogs(ctx context.Context, limit, offset int) ([]*OccupancyLogEntry, int, error) {
	entries, total, err := s.logs.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, httpx.Persistence("list occupancy logs", err)
	}
	if entries == nil {
		entries = []*OccupancyLogEntry{}
	}
	return entries, total, nil
}

func (s *Service) ListLogsForBed(ctx context.Context, key string, limit, offset int) ([]*OccupancyLogEntry, int, error) {
	b, err := s.resolve(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	entries, total, err := s.logs.ListByBed(ctx, b.ID, limit, offset)
	if err != nil {
		return nil, 0, httpx.Persistence("list occupancy logs", err)
	}
	if entries == nil {
		entries = []*OccupancyLogEntry{}
	}
	return entries, total, nil
}
