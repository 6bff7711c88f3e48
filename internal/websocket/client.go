package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingEvery    = 54 * time.Second

	// Subscribers only listen; anything beyond a control frame is
	// already suspicious.
	maxInboundBytes = 512

	queueDepth = 256
)

// Client adapts one gorilla connection to the hub's Subscriber
// contract. Events are queued and written by a single writer
// goroutine; the read side only services control frames.
type Client struct {
	id      string
	channel string
	conn    *websocket.Conn
	hub     *Hub

	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func NewClient(conn *websocket.Conn, channel string, hub *Hub) *Client {
	return &Client{
		id:      uuid.New().String(),
		channel: channel,
		conn:    conn,
		hub:     hub,
		queue:   make(chan []byte, queueDepth),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string      { return c.id }
func (c *Client) Channel() string { return c.channel }

// Deliver enqueues a payload without blocking. A full queue means the
// peer stopped draining; the hub treats that as fatal.
func (c *Client) Deliver(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.queue <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close tears the connection down. Idempotent and safe from any
// goroutine.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Run services the connection until either side closes it: the write
// loop drains the queue and keeps the ping/pong heartbeat, the read
// loop (this goroutine) watches for the peer going away. The client
// detaches itself from the hub on exit.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
	c.hub.Detach(c)
	_ = c.Close()
}

func (c *Client) readLoop() {
	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("subscriber_id", c.id).Str("channel", c.channel).Msg("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	heartbeat := time.NewTicker(pingEvery)
	defer heartbeat.Stop()

	for {
		select {
		case payload := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn().Err(err).Str("subscriber_id", c.id).Str("channel", c.channel).Msg("WebSocket write failed")
				_ = c.Close()
				return
			}
		case <-heartbeat.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}
