package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Keepalive for dashboard tabs. A laptop that sleeps with the dashboard
// open stops answering pings; after idleTimeout its client is dropped so
// the status and preview hubs stop queueing for it.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingEvery    = idleTimeout * 9 / 10

	// The page never sends data frames, only pongs and close frames.
	inboundLimit = 512
)

// Client is one dashboard tab subscribed to a hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient subscribes conn to h. If the hub has already shut down the
// queue is closed, so Run returns straight away.
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	c := newClient(h)
	c.conn = conn
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

func newClient(h *Hub) *Client {
	return &Client{hub: h, send: make(chan Message, sendBuffer)}
}

// Run serves the tab until it goes away. fiber's websocket handler must
// not return while the connection is in use, so Run blocks.
func (c *Client) Run() {
	go c.forward()
	c.watch()
}

// watch consumes inbound frames so pongs and close frames are processed,
// and unsubscribes when the tab disconnects or stops answering.
func (c *Client) watch() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	extend := func() { c.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	c.conn.SetReadLimit(inboundLimit)
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// forward writes queued status snapshots and preview stills to the tab,
// pinging it between messages. It is the connection's only writer.
func (c *Client) forward() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Dropped as slow, or the hub is shutting down.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(msg.frameType(), msg.Data); err != nil {
				c.hub.logger.Debug("dashboard write failed", "error", err)
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frameType maps a Message onto a websocket frame: status snapshots go as
// text, preview stills as binary.
func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
