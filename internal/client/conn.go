// Package client is the player-side connection object: a websocket event
// channel that feeds a session bus, plus the HTTP session status query.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"rps_arena/internal/logger"
	"rps_arena/internal/protocol"
	"rps_arena/internal/session"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	dialAttempts = 5
)

// ErrClosed is returned by Send after the connection dropped.
var ErrClosed = errors.New("connection closed")

// Conn implements session.Conn over a websocket and the REST API.
type Conn struct {
	base  string
	token string
	http  *http.Client
	bus   *session.Bus

	ws  *websocket.Conn
	wmu sync.Mutex

	done chan struct{}
	once sync.Once
	err  error
}

// Dial opens the event channel for the player identified by token. Every
// received event is published on bus. Transient dial failures are retried
// with exponential backoff; a rejected token is not.
func Dial(ctx context.Context, baseURL, token string, bus *session.Bus) (*Conn, error) {
	wsURL, err := socketURL(baseURL, token)
	if err != nil {
		return nil, err
	}

	ws, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err == nil {
			return conn, nil
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, backoff.Permanent(fmt.Errorf("dial: %s", resp.Status))
		}
		logger.Debug("dial failed, retrying", "error", err)
		return nil, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(dialAttempts))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", baseURL, err)
	}

	c := &Conn{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
		bus:   bus,
		ws:    ws,
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func socketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func (c *Conn) readLoop() {
	defer c.shutdown(ErrClosed)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.shutdown(err)
			}
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		c.bus.Publish(env)
	}
}

func (c *Conn) shutdown(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
		_ = c.ws.Close()
	})
}

// Send writes one command. Writes are serialized.
func (c *Conn) Send(ctx context.Context, ev protocol.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

// SessionStatus queries GET /api/v1/match/session.
func (c *Conn) SessionStatus(ctx context.Context) (*protocol.SessionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/match/session", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session status: %s", resp.Status)
	}
	var body protocol.SessionStatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode session status: %w", err)
	}
	return body.Status, nil
}

// Done is closed when the connection drops.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection dropped.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close sends a close frame and tears the connection down.
func (c *Conn) Close() error {
	c.wmu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	c.shutdown(ErrClosed)
	return nil
}

var _ session.Conn = (*Conn)(nil)
