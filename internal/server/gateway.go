// Package server coordinates connection registration, event dispatch and
// connection cleanup for the real-time channel via the Gateway type.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/gigboard/internal/platform/metrics"
	"github.com/Tyrowin/gigboard/internal/store"
)

//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=mocks/store_mock.go -package=mocks

// Store is the persistence the gateway needs. Implementations return
// store.ErrNotFound (optionally wrapped) for unknown users.
type Store interface {
	InsertMessage(ctx context.Context, senderID, recipientID, text string) (*store.Message, error)
	InsertGig(ctx context.Context, ownerID string, fields store.GigFields) (*store.Gig, error)
	FindUserByID(ctx context.Context, id string) (*store.UserSummary, error)
}

// Gateway owns the Registry and the Directory. Registration and
// unregistration are serialized through its run loop; events are dispatched
// on each connection's read goroutine.
type Gateway struct {
	store     Store
	registry  *Registry
	directory *Directory
	log       *slog.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate

	register   chan *Client
	unregister chan *Client
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.log = logger
		}
	}
}

// WithMetrics sets the collectors updated by the gateway.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGateway creates a gateway persisting through st. Run must be started
// before connections are registered.
func NewGateway(st Store, opts ...Option) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		store:      st,
		registry:   NewRegistry(),
		directory:  NewDirectory(),
		log:        slog.Default(),
		validate:   validator.New(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New()
	}
	return g
}

// Register hands a new connection to the run loop, which adds it to the
// registry and starts its pumps. After shutdown the connection is closed.
func (g *Gateway) Register(c *Client) {
	select {
	case g.register <- c:
	case <-g.ctx.Done():
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

// Unregister hands a closed connection to the run loop. Once the loop has
// stopped the cleanup runs on the caller's goroutine instead.
func (g *Gateway) Unregister(c *Client) {
	select {
	case g.unregister <- c:
	case <-g.done:
		g.evict(c)
	}
}

// Run starts the gateway's main loop, handling connection registration and
// unregistration until Shutdown. Call it in its own goroutine.
func (g *Gateway) Run() {
	defer close(g.done)

	for {
		select {
		case <-g.ctx.Done():
			g.shutdownClients()
			return

		case client := <-g.register:
			if client == nil {
				g.log.Warn("received nil client registration; skipping")
				continue
			}
			g.open(client)

		case client := <-g.unregister:
			g.evict(client)
		}
	}
}

// open adds the connection to the registry without any identity.
func (g *Gateway) open(c *Client) {
	count := g.registry.Add(c)
	g.metrics.ConnectionsOpen.Set(float64(count))
	c.log.Info("client registered", "connections", count)

	if c.conn == nil {
		return
	}
	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		c.writePump()
	}()
	go func() {
		defer g.wg.Done()
		c.readPump()
	}()
}

// evict removes the connection from the registry and then every directory
// binding that targets it. Both steps finish before evict returns.
func (g *Gateway) evict(c *Client) {
	if !g.registry.Remove(c) {
		return
	}
	users := g.directory.UnbindConnection(c)

	g.metrics.ConnectionsOpen.Set(float64(g.registry.Len()))
	g.metrics.UsersOnline.Set(float64(g.directory.Len()))
	c.log.Info("client unregistered", "connections", g.registry.Len(), "unbound_users", users)
}

// dispatch routes one inbound frame to exactly one handler. Handler panics
// are logged and never reach the connection.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered from panic in event handler", "panic", r)
		}
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("discarding malformed event frame", "error", err)
		return
	}

	switch env.Type {
	case EventIdentityAnnounce:
		g.metrics.IncrementEvent(env.Type)
		g.announce(c, env.Payload)
	case EventMessageSend:
		g.metrics.IncrementEvent(env.Type)
		g.relayMessage(c, env.Payload)
	case EventGigCreate:
		g.metrics.IncrementEvent(env.Type)
		g.createGigFromEvent(c, env.Payload)
	default:
		g.metrics.IncrementEvent("unknown")
		c.log.Info("ignoring unknown event type", "type", env.Type)
	}
}

// announce binds the announced user id to the connection. Re-announcing is
// idempotent; announcing from a new connection replaces the old binding
// without closing the old connection.
func (g *Gateway) announce(c *Client, raw json.RawMessage) {
	var p IdentityAnnouncePayload
	if err := g.decode(raw, &p); err != nil {
		c.log.Warn("invalid identity announcement", "error", err)
		g.sendError(c, CodeIdentityInvalid)
		return
	}

	previous, ok := g.directory.Bind(p.UserID, c)
	if !ok {
		c.log.Debug("identity announced on closed connection", "user_id", p.UserID)
		return
	}
	g.metrics.UsersOnline.Set(float64(g.directory.Len()))

	if previous != nil && previous != c {
		c.log.Info("user rebound to new connection", "user_id", p.UserID, "previous_conn_id", previous.id)
		return
	}
	c.log.Info("user online", "user_id", p.UserID)
}

func (g *Gateway) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return g.validate.Struct(dst)
}

// storeContext bounds a store call. It does not derive from the connection,
// so closing the connection never cancels an in-flight write.
func (g *Gateway) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), currentConfig().StoreTimeout)
}

// send encodes and queues one event. It reports whether the event was queued.
func (g *Gateway) send(c *Client, eventType string, payload any) bool {
	frame, err := encodeEvent(eventType, payload)
	if err != nil {
		c.log.Error("failed to encode event", "type", eventType, "error", err)
		return false
	}
	return g.deliver(c, frame)
}

// deliver queues a frame. A closed connection is a silent no-op; a
// connection whose buffer is full is evicted as a slow consumer.
func (g *Gateway) deliver(c *Client, frame []byte) bool {
	err := g.registry.Send(c, frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSendBufferFull):
		c.log.Warn("evicting slow consumer", "error", err)
		g.evict(c)
	}
	return false
}

func (g *Gateway) sendError(c *Client, code ErrorCode) {
	g.metrics.IncrementRelayError(string(code))
	g.send(c, EventRelayError, code)
}

// ConnectionCount returns the number of open connections.
func (g *Gateway) ConnectionCount() int {
	return g.registry.Len()
}

// OnlineUsers returns the number of users with an active binding.
func (g *Gateway) OnlineUsers() int {
	return g.directory.Len()
}

// shutdownClients closes every open connection. The read pumps then run the
// regular cleanup through Unregister.
func (g *Gateway) shutdownClients() {
	g.log.Info("shutting down all client connections")

	clients := g.registry.Snapshot()
	for _, client := range clients {
		if client.conn == nil {
			g.evict(client)
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			client.log.Warn("error closing client connection", "error", err)
		}
	}

	g.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the run loop and waits for the connection goroutines, up to
// timeout.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.log.Info("initiating gateway shutdown")
	g.cancel()
	<-g.done

	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		g.log.Info("gateway shutdown completed")
		return nil
	case <-time.After(timeout):
		g.log.Warn("gateway shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
