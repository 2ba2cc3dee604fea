package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// socket maintains the WebSocket connection to the server, redialing with
// exponential backoff. It reports connects and disconnects upward; the
// client decides what to do with them.
type socket struct {
	url     string
	token   string
	logger  zerolog.Logger
	onEvent func(Event)
	// onConnect fires after every successful dial, including redials.
	onConnect    func()
	onDisconnect func()
}

// wsURL converts the REST base URL into the websocket endpoint with the
// token in the query string.
func wsURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// run dials and reads until ctx is cancelled. Each dial failure or dropped
// connection backs off exponentially; a successful dial resets the backoff.
func (s *socket) run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := gorillawebsocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		s.onConnect()
		s.read(ctx, conn)
		s.onDisconnect()
	}
}

func (s *socket) read(ctx context.Context, conn *gorillawebsocket.Conn) {
	// done releases the cancellation watcher when this connection ends, so
	// redials do not leave a goroutine behind per dropped connection.
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("connection lost")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			s.logger.Warn().Err(err).Msg("malformed event frame")
			continue
		}
		s.onEvent(ev)
	}
}
