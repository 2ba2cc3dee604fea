package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bedtrack/bedtrack/internal/platform/auth"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxFrameSize = 4096
)

// Session is one authenticated WebSocket connection. The identity comes from
// the verified token presented at connect time and does not change for the
// lifetime of the session.
type Session struct {
	UserID string
	Email  string
	Role   string
	send   chan []byte
}

// Hub owns the session table and serializes access to it. Every broadcast
// fans out to all registered sessions; a session whose send buffer is full
// misses the message rather than stalling the fan-out.
type Hub struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[*Session]struct{}

	onBroadcast func(event string)
	onDrop      func()
	onCount     func(n int)
}

type HubOption func(*Hub)

// WithBroadcastHook observes every fan-out by event name.
func WithBroadcastHook(fn func(event string)) HubOption {
	return func(h *Hub) { h.onBroadcast = fn }
}

// WithDropHook observes messages dropped on full session buffers.
func WithDropHook(fn func()) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

// WithCountHook observes changes to the number of registered sessions.
func WithCountHook(fn func(n int)) HubOption {
	return func(h *Hub) { h.onCount = fn }
}

func NewHub(logger zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		logger:   logger.With().Str("component", "realtime").Logger(),
		sessions: make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a session and announces the new connected-user count to
// every session, the newcomer included.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()

	h.logger.Info().Str("user_id", s.UserID).Str("role", s.Role).Int("sessions", n).Msg("session connected")
	h.notifyCount(n)
}

// Unregister removes a session and closes its send channel. The session is
// removed from the table before the channel closes so a concurrent broadcast
// can never write to a closed channel. Safe to call more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()

	close(s.send)
	h.logger.Info().Str("user_id", s.UserID).Int("sessions", n).Msg("session disconnected")
	h.notifyCount(n)
}

func (h *Hub) notifyCount(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
	h.Broadcast(EventConnectedUserCount, map[string]int{"count": n})
}

// Broadcast marshals the payload into the event envelope and fans it out to
// every registered session.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("marshal broadcast payload")
		return
	}
	frame, err := json.Marshal(Event{Event: event, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("marshal event envelope")
		return
	}

	if h.onBroadcast != nil {
		h.onBroadcast(event)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		select {
		case s.send <- frame:
		default:
			// Slow consumer: it misses this message and will re-baseline
			// over REST if it falls behind.
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}

// SessionCount returns the number of registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ---------------------------------------------------------------------------
// Connection gate and pumps
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer.
	},
}

// Handler gates and upgrades WebSocket connections for the hub.
type Handler struct {
	hub    *Hub
	secret string
}

func NewHandler(hub *Hub, jwtSecret string) *Handler {
	return &Handler{hub: hub, secret: jwtSecret}
}

// RegisterRoutes mounts the realtime endpoint on the given group.
func (hd *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", hd.HandleConnect)
}

// tokenFrom extracts the credential from the query string or, failing that,
// the Authorization header. Browsers cannot set headers on WebSocket
// connects, so the query parameter is the primary channel.
func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// HandleConnect verifies the presented token, rejecting with 401 before any
// upgrade happens, then registers the session and starts the pumps.
func (hd *Handler) HandleConnect(c echo.Context) error {
	token := tokenFrom(c.Request())
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, err := auth.VerifyToken(hd.secret, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	session := &Session{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		send:   make(chan []byte, sendBuffer),
	}
	hd.hub.Register(session)

	go hd.writePump(session, ws)
	go hd.readPump(session, ws)

	return nil
}

// readPump drains inbound frames to keep pong handling alive. Clients do not
// drive state changes over the socket; mutations go through REST.
func (hd *Handler) readPump(s *Session, ws *gorillawebsocket.Conn) {
	defer func() {
		hd.hub.Unregister(s)
		ws.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (hd *Handler) writePump(s *Session, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
