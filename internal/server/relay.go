package server

import (
	"encoding/json"
	"time"
)

// relayMessage persists a direct message, pushes it to the recipient's bound
// connection when there is one and always confirms it to the sender.
func (g *Gateway) relayMessage(c *Client, raw json.RawMessage) {
	var p MessageSendPayload
	if err := g.decode(raw, &p); err != nil {
		c.log.Warn("invalid message-send payload", "error", err)
		g.sendError(c, CodeMessageInvalid)
		return
	}

	ctx, cancel := g.storeContext()
	defer cancel()

	start := time.Now()
	msg, err := g.store.InsertMessage(ctx, p.SenderID, p.RecipientID, p.Text)
	g.metrics.ObserveStore("insert_message", start)
	if err != nil {
		c.log.Error("failed to save message",
			"sender_id", p.SenderID,
			"recipient_id", p.RecipientID,
			"error", err)
		g.sendError(c, CodeMessageSaveFailed)
		return
	}

	frame, err := encodeEvent(EventMessageReceive, msg)
	if err != nil {
		c.log.Error("failed to encode message", "message_id", msg.ID, "error", err)
		return
	}

	online := false
	if recipient, ok := g.directory.Lookup(msg.RecipientID); ok {
		online = g.deliver(recipient, frame)
	}
	g.metrics.IncrementMessageRelayed(online)

	g.send(c, EventMessageSent, msg)
}
