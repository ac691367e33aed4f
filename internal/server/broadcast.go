package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/gigboard/internal/store"
)

// CreateGig resolves the owner, persists the gig and broadcasts it to every
// open connection. Failures are returned as *RelayError and nothing is
// broadcast.
func (g *Gateway) CreateGig(ctx context.Context, ownerID string, fields store.GigFields) (*store.Gig, error) {
	start := time.Now()
	_, err := g.store.FindUserByID(ctx, ownerID)
	g.metrics.ObserveStore("find_user", start)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &RelayError{Code: CodeGigOwnerNotFound, Err: err}
		}
		return nil, &RelayError{Code: CodeGigCreateFailed, Err: fmt.Errorf("resolve owner: %w", err)}
	}

	start = time.Now()
	gig, err := g.store.InsertGig(ctx, ownerID, fields)
	g.metrics.ObserveStore("insert_gig", start)
	if err != nil {
		return nil, &RelayError{Code: CodeGigCreateFailed, Err: fmt.Errorf("insert gig: %w", err)}
	}

	g.broadcastGig(gig)
	return gig, nil
}

// broadcastGig sends gig-created once to every registered connection. A
// connection that closes mid-broadcast is skipped.
func (g *Gateway) broadcastGig(gig *store.Gig) {
	frame, err := encodeEvent(EventGigCreated, gig)
	if err != nil {
		g.log.Error("failed to encode gig", "gig_id", gig.ID, "error", err)
		return
	}

	recipients := g.registry.Snapshot()
	delivered := 0
	for _, c := range recipients {
		if g.deliver(c, frame) {
			delivered++
		}
	}
	g.metrics.GigsBroadcast.Inc()
	g.log.Info("gig broadcast", "gig_id", gig.ID, "owner_id", gig.OwnerID, "recipients", delivered)
}

func (g *Gateway) createGigFromEvent(c *Client, raw json.RawMessage) {
	var p GigCreatePayload
	if err := g.decode(raw, &p); err != nil {
		c.log.Warn("invalid gig-create payload", "error", err)
		g.sendError(c, CodeGigInvalid)
		return
	}

	ctx, cancel := g.storeContext()
	defer cancel()

	_, err := g.CreateGig(ctx, p.OwnerID, p.fields())
	if err == nil {
		return
	}

	code, ok := CodeOf(err)
	if !ok {
		code = CodeGigCreateFailed
	}
	c.log.Error("failed to create gig", "owner_id", p.OwnerID, "code", code, "error", err)
	g.sendError(c, code)
}
