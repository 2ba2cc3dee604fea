package request

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no request matches the lookup.
var ErrNotFound = errors.New("emergency request not found")

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// List returns requests newest first, optionally filtered by status.
	List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error)
	Update(ctx context.Context, r *Request) error
	Delete(ctx context.Context, id uuid.UUID) error
}
