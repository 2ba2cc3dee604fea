package alert

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/platform/httpx"
)

type Service struct {
	alerts Repository
}

func NewService(alerts Repository) *Service {
	return &Service{alerts: alerts}
}

// ListForRole returns the alerts addressed to the caller's role. Filtering
// happens server-side so clients never see alerts meant for someone else.
func (s *Service) ListForRole(ctx context.Context, role string, limit, offset int) ([]*Alert, int, error) {
	alerts, total, err := s.alerts.ListForRole(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, httpx.Persistence("list alerts", err)
	}
	if alerts == nil {
		alerts = []*Alert{}
	}
	return alerts, total, nil
}

// Dismiss marks an alert read. Dismissing twice is a no-op, not an error.
func (s *Service) Dismiss(ctx context.Context, id uuid.UUID) error {
	err := s.alerts.MarkRead(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return httpx.NotFound("alert %s not found", id)
	}
	if err != nil {
		return httpx.Persistence("dismiss alert", err)
	}
	return nil
}
