package alert

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no alert matches the lookup.
var ErrNotFound = errors.New("alert not found")

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	// ListForRole returns alerts addressed to the given role, newest first.
	ListForRole(ctx context.Context, role string, limit, offset int) ([]*Alert, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// MarkRead sets read=true. Marking an already-read alert is a no-op.
	MarkRead(ctx context.Context, id uuid.UUID) error
}
