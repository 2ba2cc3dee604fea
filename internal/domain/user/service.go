package user

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/platform/httpx"
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, httpx.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, httpx.Persistence("load user", err)
	}
	return u, nil
}

// ListByRole backs patient pickers and staff directories.
func (s *Service) ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if !ValidRole(role) {
		return nil, 0, httpx.Validation("invalid role %q", role)
	}
	users, total, err := s.users.ListByRole(ctx, role, limit, offset)
	if err != nil {
		return nil, 0, httpx.Persistence("list users", err)
	}
	if users == nil {
		users = []*User{}
	}
	return users, total, nil
}
