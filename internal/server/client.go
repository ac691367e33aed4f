// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one real-time connection. Its id is assigned by the gateway and
// is unrelated to the user the connection may announce.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	gateway        *Gateway
	addr           string
	closed         atomic.Bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	log            *slog.Logger
}

// NewClient creates a Client for conn. The send channel is buffered with the
// configured SendBufferSize.
func NewClient(conn *websocket.Conn, gateway *Gateway, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	log := slog.Default()
	if gateway != nil {
		log = gateway.log
	}

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		gateway:        gateway,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		log:            log.With("conn_id", id, "addr", addr),
	}
}

func (c *Client) isClosed() bool {
	return c.closed.Load()
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError is the connection's error hook. It only logs; a failed
// read ends the read loop because the transport cannot resume after it.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("event exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("unexpected websocket close", "error", err)
	default:
		c.log.Error("websocket read error", "error", err)
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the event should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding event",
			"burst", c.rateLimit.Burst,
			"interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// readPump reads events one at a time and dispatches each before reading the
// next, which preserves the per-connection event order.
func (c *Client) readPump() {
	defer func() {
		c.gateway.Unregister(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.gateway.dispatch(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		if !ok {
			return c.writeCloseMessage()
		}
		return c.writeFrame(websocket.TextMessage, message)
	case <-ticker.C:
		return c.writeFrame(websocket.PingMessage, nil)
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error closing connection", "error", err)
	}
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error writing close message", "error", err)
	}
	return false
}

// writeFrame writes one event, or a ping when messageType is PingMessage.
// Every event is its own frame so clients can decode frames independently.
func (c *Client) writeFrame(messageType int, payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing frame", "error", err, "type", messageType)
		}
		return false
	}
	return true
}
