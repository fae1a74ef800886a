package signal

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// outbound is the broker-to-client wire frame.
type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client wraps a websocket connection behind a buffered send queue. All
// writes go through writePump so the connection sees a single writer.
type Client struct {
	conn   *websocket.Conn
	sendCh chan outbound
	logger *zap.SugaredLogger

	pingInterval time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn *websocket.Conn, sendBuffer int, pingInterval, writeTimeout time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		conn:         conn,
		sendCh:       make(chan outbound, sendBuffer),
		logger:       logger,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Send enqueues an event frame without blocking. A slow consumer whose
// queue is full loses the frame rather than stalling the broadcaster.
func (c *Client) Send(event string, payload interface{}) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}

	select {
	case c.sendCh <- outbound{Event: event, Data: payload}:
		return nil
	default:
		c.logger.Warnw("send queue full, dropping frame", "event", event)
		return fmt.Errorf("send queue full")
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with periodic pings. Runs until Close or a write error.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case frame := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Debugw("write failed", "event", frame.Event, "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
