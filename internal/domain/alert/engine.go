package alert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bedtrack/bedtrack/internal/domain/bed"
	"github.com/bedtrack/bedtrack/internal/domain/request"
	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/realtime"
)

// supervisorRoles receive operational alerts.
var supervisorRoles = []string{user.RoleManager, user.RoleHospitalAdmin}

// Engine evaluates alert rules after committed mutations. It runs on the
// side-effect path: failures are logged, never surfaced to the caller.
type Engine struct {
	alerts    Repository
	beds      bed.Repository
	bc        realtime.Broadcaster
	threshold float64
	logger    zerolog.Logger
}

func NewEngine(alerts Repository, beds bed.Repository, bc realtime.Broadcaster,
	occupancyThreshold float64, logger zerolog.Logger) *Engine {
	return &Engine{
		alerts:    alerts,
		beds:      beds,
		bc:        bc,
		threshold: occupancyThreshold,
		logger:    logger.With().Str("component", "alert-engine").Logger(),
	}
}

// BedStatusChanged raises maintenance and ward-occupancy alerts after a bed
// mutation.
func (e *Engine) BedStatusChanged(ctx context.Context, b *bed.Bed, previous string) {
	if b.Status == bed.StatusMaintenance && previous != bed.StatusMaintenance {
		e.raise(ctx, &Alert{
			Type:        TypeMaintenanceNeeded,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("Bed %s in %s was taken out of service", b.Code, b.Ward),
			BedID:       &b.ID,
			TargetRoles: supervisorRoles,
		})
	}

	occ, err := e.beds.WardOccupancy(ctx, b.Ward)
	if err != nil {
		e.logger.Error().Err(err).Str("ward", b.Ward).Msg("ward occupancy lookup failed")
		return
	}
	if occ.Total > 0 && occ.Ratio() >= e.threshold {
		e.raise(ctx, &Alert{
			Type:     TypeOccupancyHigh,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("Ward %s occupancy at %d%% (%d of %d beds occupied)",
				b.Ward, int(occ.Ratio()*100), occ.Occupied, occ.Total),
			TargetRoles: supervisorRoles,
		})
	}
}

// RequestCreated raises a pending-request alert for supervisors.
func (e *Engine) RequestCreated(ctx context.Context, r *request.Request) {
	severity := SeverityMedium
	switch r.Priority {
	case request.PriorityCritical:
		severity = SeverityCritical
	case request.PriorityHigh:
		severity = SeverityHigh
	}
	patientName := ""
	if r.Patient != nil {
		patientName = r.Patient.Name
	}
	e.raise(ctx, &Alert{
		Type:        TypeRequestPending,
		Severity:    severity,
		Message:     fmt.Sprintf("Emergency bed request for %s at %s awaits review", patientName, r.Location),
		RequestID:   &r.ID,
		TargetRoles: supervisorRoles,
	})
}

func (e *Engine) raise(ctx context.Context, a *Alert) {
	if err := e.alerts.Create(ctx, a); err != nil {
		e.logger.Error().Err(err).Str("type", a.Type).Msg("create alert failed")
		return
	}
	e.bc.Broadcast(realtime.EventAlertCreated, map[string]interface{}{"alert": a})
}
