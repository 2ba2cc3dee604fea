package bed

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no bed matches the lookup.
	ErrNotFound = errors.New("bed not found")
	// ErrVersionConflict is returned when an update carries a stale version.
	ErrVersionConflict = errors.New("bed version conflict")
	// ErrDuplicateCode is returned when a bed code is already taken.
	ErrDuplicateCode = errors.New("bed code already exists")
)

// Filter narrows bed listings.
type Filter struct {
	Status string
	Ward   string
}

// WardOccupancy reports how full a ward is after a mutation.
type WardOccupancy struct {
	Ward     string
	Total    int
	Occupied int
}

func (w WardOccupancy) Ratio() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Occupied) / float64(w.Total)
}

type Repository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	GetByCode(ctx context.Context, code string) (*Bed, error)
	List(ctx context.Context, f Filter) ([]*Bed, error)
	// UpdateStatus writes status, occupant, and bumped version. When
	// expectedVersion is non-nil the write only applies if the stored
	// version still matches; otherwise ErrVersionConflict.
	UpdateStatus(ctx context.Context, b *Bed, expectedVersion *int64) error
	WardOccupancy(ctx context.Context, ward string) (WardOccupancy, error)
}

type LogRepository interface {
	Append(ctx context.Context, e *OccupancyLogEntry) error
	List(ctx context.Context, limit, offset int) ([]*OccupancyLogEntry, int, error)
	ListByBed(ctx context.Context, bedID uuid.UUID, limit, offset int) ([]*OccupancyLogEntry, int, error)
}
