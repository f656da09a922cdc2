// Package gemini provides the websocket transport to the Multimodal Live API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultHost is the Live API endpoint host.
	DefaultHost = "generativelanguage.googleapis.com"

	// DefaultModel is the model identifier sent in the setup frame.
	DefaultModel = "models/gemini-2.0-flash-exp"

	bidiPath = "/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

	// readLimit bounds a single inbound frame; audio chunks arrive well
	// under this.
	readLimit = 8 * 1024 * 1024
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("gemini connection closed")

// Client is a persistent, message-framed connection to the Live API. Frames
// are JSON text messages; ordering is the socket's ordering. One goroutine
// writes, one reads; Close may be called from anywhere and is idempotent.
type Client struct {
	conn *websocket.Conn

	mu     sync.RWMutex
	closed bool
}

// Dial opens the Live API websocket. The API key is carried in the URL query,
// matching the v1alpha endpoint's auth scheme.
func Dial(ctx context.Context, host, apiKey string) (*Client, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     host,
		Path:     bidiPath,
		RawQuery: "key=" + url.QueryEscape(apiKey),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Live API: %w", err)
	}
	conn.SetReadLimit(readLimit)

	return &Client{conn: conn}, nil
}

// Send writes one serialized frame as a text message. The caller must
// serialize access; the session's write pump is the sole writer.
func (c *Client) Send(payload []byte) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// Receive blocks until the next inbound frame or a transport error. A close
// initiated locally surfaces as ErrClosed so the receive loop can tell an
// expected shutdown from a server-side failure.
func (c *Client) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return data, nil
}

// Close sends a close frame on a best-effort basis and tears the socket down.
// Safe to call more than once and from any goroutine; it also unblocks a
// pending Receive.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// WriteControl is safe alongside a concurrent writer, unlike WriteMessage.
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}
