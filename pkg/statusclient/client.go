// Package statusclient follows a running dashboard's /ws/status stream
// from another process.
package statusclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/crywatch/pkg/web"
)

// StatusPath is where the dashboard serves status updates.
const StatusPath = "/ws/status"

// Client is a connected status subscriber.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// URL turns a dashboard address such as "localhost:8080" or
// "http://host:8080" into its status websocket URL.
func URL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("statusclient: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("statusclient: unsupported scheme %q", u.Scheme)
	}
	u.Path = StatusPath
	return u.String(), nil
}

// Dial connects to a dashboard status stream.
func Dial(ctx context.Context, wsURL string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("statusclient: dial %s: %w", wsURL, err)
	}
	return &Client{conn: conn, logger: logger.With("component", "statusclient")}, nil
}

// Run decodes every status message and hands it to fn. It returns nil
// when ctx is cancelled or the dashboard closes the stream normally.
// Undecodable messages are logged and skipped.
func (c *Client) Run(ctx context.Context, fn func(web.Status)) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("statusclient: read: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}

		var st web.Status
		if err := sonic.Unmarshal(data, &st); err != nil {
			c.logger.Warn("undecodable status", "error", err)
			continue
		}
		fn(st)
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
