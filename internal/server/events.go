// Package server defines the real-time event vocabulary and the payloads
// exchanged between clients and the gateway.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/gigboard/internal/store"
)

// Client to server events.
const (
	EventIdentityAnnounce = "identity-announce"
	EventMessageSend      = "message-send"
	EventGigCreate        = "gig-create"
)

// Server to client events.
const (
	EventMessageReceive = "message-receive"
	EventMessageSent    = "message-sent"
	EventGigCreated     = "gig-created"
	EventRelayError     = "relay-error"
)

// ErrorCode is the machine-readable payload of a relay-error event.
type ErrorCode string

const (
	CodeIdentityInvalid   ErrorCode = "identity_invalid"
	CodeMessageInvalid    ErrorCode = "message_invalid"
	CodeMessageSaveFailed ErrorCode = "message_save_failed"
	CodeGigInvalid        ErrorCode = "gig_invalid"
	CodeGigOwnerNotFound  ErrorCode = "gig_create_failed_user_not_found"
	CodeGigCreateFailed   ErrorCode = "gig_create_failed"
)

// RelayError is a failure that is reported to the originating connection
// with a stable code.
type RelayError struct {
	Code ErrorCode
	Err  error
}

func (e *RelayError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// CodeOf returns the relay code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Code, true
	}
	return "", false
}

// Envelope is the frame of every event: one JSON object per WebSocket text
// message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IdentityAnnouncePayload binds the announcing connection to a user.
type IdentityAnnouncePayload struct {
	UserID string `json:"userId" validate:"required"`
}

// MessageSendPayload is a direct message from SenderID to RecipientID.
// SenderID is taken as provided by the client.
type MessageSendPayload struct {
	SenderID    string `json:"senderId" validate:"required"`
	RecipientID string `json:"recipientId" validate:"required"`
	Text        string `json:"text" validate:"required"`
}

// GigCreatePayload carries a new gig. Price is a pointer so a missing price
// can be told apart from a free gig.
type GigCreatePayload struct {
	OwnerID     string   `json:"ownerId" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Tags        []string `json:"tags"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Unit        string   `json:"unit"`
}

func (p GigCreatePayload) fields() store.GigFields {
	var price float64
	if p.Price != nil {
		price = *p.Price
	}
	return store.GigFields{
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Tags,
		Price:       price,
		Unit:        p.Unit,
	}
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
