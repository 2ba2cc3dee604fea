package request

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bedtrack/bedtrack/internal/domain/user"
	"github.com/bedtrack/bedtrack/internal/platform/httpx"
	"github.com/bedtrack/bedtrack/internal/platform/realtime"
)

// Runner dispatches best-effort side effects off the request path.
type Runner interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// AlertNotifier is told about newly created requests so the pending-request
// alert rule can fire.
type AlertNotifier interface {
	RequestCreated(ctx context.Context, r *Request)
}

type Service struct {
	requests Repository
	users    user.Repository
	bc       realtime.Broadcaster
	runner   Runner
	alerts   AlertNotifier
}

func NewService(requests Repository, users user.Repository, bc realtime.Broadcaster, runner Runner) *Service {
	return &Service{requests: requests, users: users, bc: bc, runner: runner}
}

func (s *Service) SetAlertNotifier(n AlertNotifier) { s.alerts = n }

type CreateInput struct {
	PatientID   *uuid.UUID `json:"patientId"`
	Location    string     `json:"location"`
	Ward        string     `json:"ward"`
	Priority    string     `json:"priority"`
	Description string     `json:"description"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if in.PatientID == nil {
		return nil, httpx.Validation("patientId is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, httpx.Validation("location is required")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !ValidPriority(in.Priority) {
		return nil, httpx.Validation("invalid priority %q", in.Priority)
	}

	patient, err := s.users.GetByID(ctx, *in.PatientID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, httpx.NotFound("patient %s not found", in.PatientID)
	}
	if err != nil {
		return nil, httpx.Persistence("load patient", err)
	}

	ref := patient.Ref()
	req := &Request{
		Patient:     &ref,
		Location:    in.Location,
		Ward:        in.Ward,
		Priority:    in.Priority,
		Status:      StatusPending,
		Description: in.Description,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, httpx.Persistence("create emergency request", err)
	}

	s.bc.Broadcast(realtime.EventRequestCreated, map[string]interface{}{"request": req})

	if s.alerts != nil {
		snapshot := *req
		s.runner.Submit("request-alert", func(ctx context.Context) error {
			s.alerts.RequestCreated(ctx, &snapshot)
			return nil
		})
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, httpx.NotFound("emergency request %s not found", id)
	}
	if err != nil {
		return nil, httpx.Persistence("load emergency request", err)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, httpx.Validation("invalid status %q", status)
	}
	requests, total, err := s.requests.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, httpx.Persistence("list emergency requests", err)
	}
	if requests == nil {
		requests = []*Request{}
	}
	return requests, total, nil
}

type UpdateInput struct {
	Status      *string `json:"status"`
	Location    *string `json:"location"`
	Ward        *string `json:"ward"`
	Priority    *string `json:"priority"`
	Description *string `json:"description"`
}

// Update applies a partial update. A status change out of a terminal state
// is rejected with a conflict; decision events are broadcast only when the
// status actually changed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Request, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	statusChanged := false
	if in.Status != nil && *in.Status != req.Status {
		if !ValidStatus(*in.Status) {
			return nil, httpx.Validation("invalid status %q", *in.Status)
		}
		if Terminal(req.Status) {
			return nil, httpx.Conflict("request is already %s", req.Status)
		}
		req.Status = *in.Status
		statusChanged = true
	}
	if in.Location != nil {
		if strings.TrimSpace(*in.Location) == "" {
			return nil, httpx.Validation("location cannot be empty")
		}
		req.Location = *in.Location
	}
	if in.Ward != nil {
		req.Ward = *in.Ward
	}
	if in.Priority != nil {
		if !ValidPriority(*in.Priority) {
			return nil, httpx.Validation("invalid priority %q", *in.Priority)
		}
		req.Priority = *in.Priority
	}
	if in.Description != nil {
		req.Description = *in.Description
	}

	if err := s.requests.Update(ctx, req); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, httpx.NotFound("emergency request %s not found", id)
		}
		return nil, httpx.Persistence("update emergency request", err)
	}

	if statusChanged {
		switch req.Status {
		case StatusApproved:
			s.bc.Broadcast(realtime.EventRequestApproved, map[string]interface{}{"request": req})
		case StatusRejected:
			s.bc.Broadcast(realtime.EventRequestRejected, map[string]interface{}{"request": req})
		}
	}
	return req, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.requests.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return httpx.NotFound("emergency request %s not found", id)
	}
	if err != nil {
		return httpx.Persistence("delete emergency request", err)
	}
	return nil
}
