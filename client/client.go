package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrOffline is returned by mutations while the server is unreachable.
// Mutations are never queued; callers retry once back online.
var ErrOffline = errors.New("client is offline")

// State of the connection to the server.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Config struct {
	// BaseURL of the server, e.g. "http://localhost:5000".
	BaseURL string
	// Token is the JWT presented over REST and at the socket handshake.
	Token         string
	Logger        zerolog.Logger
	OnStateChange func(State)
	// Timeout per REST call. Defaults to 10s.
	Timeout time.Duration
}

// Client keeps local snapshots of beds and emergency requests in sync with
// the server. While online, pushed events reconcile the snapshots in place;
// after every reconnect the snapshots are re-baselined with a full refetch,
// which also covers any events missed while away.
type Client struct {
	rest     *resty.Client
	logger   zerolog.Logger
	beds     *Cache[Bed]
	requests *Cache[Request]
	sock     *socket

	online     atomic.Bool
	onState    func(State)
	refetchGen atomic.Int64
	userCount  atomic.Int64
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("Token is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		rest: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetAuthToken(cfg.Token).
			SetHeader("Content-Type", "application/json"),
		logger:   cfg.Logger.With().Str("component", "bedtrack-client").Logger(),
		beds:     NewCache[Bed](),
		requests: NewCache[Request](),
		onState:  cfg.OnStateChange,
	}

	endpoint, err := wsURL(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c.sock = &socket{
		url:          endpoint,
		token:        cfg.Token,
		logger:       c.logger,
		onEvent:      c.handleEvent,
		onConnect:    c.handleConnect,
		onDisconnect: c.handleDisconnect,
	}
	return c, nil
}

// Start runs the connection loop until ctx is cancelled. The client begins
// offline; the first successful dial flips it online and triggers the
// initial baseline fetch.
func (c *Client) Start(ctx context.Context) {
	go c.sock.run(ctx)
}

// Online reports whether the server is currently reachable.
func (c *Client) Online() bool { return c.online.Load() }

// ConnectedUsers returns the last user count announced by the server.
func (c *Client) ConnectedUsers() int { return int(c.userCount.Load()) }

// Beds returns the cached bed snapshot and when it last changed.
func (c *Client) Beds() ([]Bed, time.Time) { return c.beds.Snapshot() }

// Requests returns the cached request snapshot and when it last changed.
func (c *Client) Requests() ([]Request, time.Time) { return c.requests.Snapshot() }

// =========== Connection lifecycle ===========

func (c *Client) handleConnect() {
	c.online.Store(true)
	c.notify(StateOnline)
	go c.refetchAll(context.Background())
}

func (c *Client) handleDisconnect() {
	c.online.Store(false)
	c.notify(StateOffline)
}

func (c *Client) notify(s State) {
	c.logger.Info().Str("state", string(s)).Msg("connection state changed")
	if c.onState != nil {
		c.onState(s)
	}
}

// refetchAll overwrites both snapshots with fresh server reads. Each call
// claims a generation; if a newer refetch starts meanwhile, this one drops
// its results instead of clobbering fresher data.
func (c *Client) refetchAll(ctx context.Context) {
	gen := c.refetchGen.Add(1)

	beds, bedsErr := c.fetchBeds(ctx)
	requests, reqsErr := c.fetchRequests(ctx)

	if c.refetchGen.Load() != gen {
		return // superseded by a later reconnect
	}
	if bedsErr != nil {
		c.logger.Error().Err(bedsErr).Msg("bed re-baseline failed")
	} else {
		c.beds.Rebaseline(beds)
	}
	if reqsErr != nil {
		c.logger.Error().Err(reqsErr).Msg("request re-baseline failed")
	} else {
		c.requests.Rebaseline(requests)
	}
}

// =========== Event reconciliation ===========

func (c *Client) handleEvent(ev Event) {
	switch ev.Event {
	case EventBedUpdated:
		var payload struct {
			Bed *Bed `json:"bed"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Bed == nil {
			c.logger.Warn().Err(err).Msg("malformed bed-updated payload")
			return
		}
		c.beds.ApplyUpdate(*payload.Bed)

	case EventRequestCreated, EventRequestApproved, EventRequestRejected:
		var payload struct {
			Request *Request `json:"request"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Request == nil {
			c.logger.Warn().Err(err).Msg("malformed request payload")
			return
		}
		c.requests.ApplyUpdate(*payload.Request)

	case EventConnectedUserCount:
		var payload struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return
		}
		c.userCount.Store(int64(payload.Count))
	}
}

// =========== REST operations ===========

func apiErr(resp *resty.Response, env *envelope) error {
	if resp.IsSuccess() {
		return nil
	}
	msg := env.Message
	if msg == "" {
		msg = resp.Status()
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}

func (c *Client) fetchBeds(ctx context.Context) ([]Bed, error) {
	var env envelope
	resp, err := c.rest.R().SetContext(ctx).SetResult(&env).SetError(&env).
		Get("/api/v1/beds")
	if err != nil {
		return nil, err
	}
	if err := apiErr(resp, &env); err != nil {
		return nil, err
	}
	var payload struct {
		Beds []Bed `json:"beds"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode beds: %w", err)
	}
	return payload.Beds, nil
}

func (c *Client) fetchRequests(ctx context.Context) ([]Request, error) {
	var env envelope
	resp, err := c.rest.R().SetContext(ctx).SetResult(&env).SetError(&env).
		Get("/api/v1/emergency-requests")
	if err != nil {
		return nil, err
	}
	if err := apiErr(resp, &env); err != nil {
		return nil, err
	}
	var payload struct {
		Requests []Request `json:"requests"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	return payload.Requests, nil
}

// UpdateBedStatusInput is the body of a bed status mutation. Version, when
// set, enables the server's optimistic concurrency check.
type UpdateBedStatusInput struct {
	Status    string     `json:"status"`
	PatientID *uuid.UUID `json:"patientId,omitempty"`
	Version   *int64     `json:"version,omitempty"`
}

// UpdateBedStatus mutates a bed identified by uuid or code. Fails fast with
// ErrOffline while disconnected; nothing is queued.
func (c *Client) UpdateBedStatus(ctx context.Context, bedKey string, in UpdateBedStatusInput) (*Bed, error) {
	if !c.online.Load() {
		return nil, ErrOffline
	}

	var env envelope
	resp, err := c.rest.R().SetContext(ctx).SetBody(in).SetResult(&env).SetError(&env).
		Patch("/api/v1/beds/" + bedKey + "/status")
	if err != nil {
		return nil, err
	}
	if err := apiErr(resp, &env); err != nil {
		return nil, err
	}

	var payload struct {
		Bed *Bed `json:"bed"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Bed == nil {
		return nil, fmt.Errorf("decode bed: %w", err)
	}
	c.beds.ApplyUpdate(*payload.Bed)
	return payload.Bed, nil
}

// CreateRequestInput is the body of an emergency request creation.
type CreateRequestInput struct {
	PatientID   uuid.UUID `json:"patientId"`
	Location    string    `json:"location"`
	Ward        string    `json:"ward,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Description string    `json:"description,omitempty"`
}

// CreateEmergencyRequest raises a new request. Fails fast with ErrOffline
// while disconnected.
func (c *Client) CreateEmergencyRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if !c.online.Load() {
		return nil, ErrOffline
	}

	var env envelope
	resp, err := c.rest.R().SetContext(ctx).SetBody(in).SetResult(&env).SetError(&env).
		Post("/api/v1/emergency-requests")
	if err != nil {
		return nil, err
	}
	if err := apiErr(resp, &env); err != nil {
		return nil, err
	}

	var payload struct {
		Request *Request `json:"request"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Request == nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	c.requests.ApplyUpdate(*payload.Request)
	return payload.Request, nil
}
