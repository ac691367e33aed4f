// Package store defines the persisted records of the gig marketplace and the
// sentinel errors shared by every storage backend.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Sentinel errors returned (optionally wrapped) by storage backends.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DefaultUnit is applied to gigs created without a pricing unit.
const DefaultUnit = "N/A"

// DefaultWallet is the starting balance of a newly registered user.
const DefaultWallet = 100

// User is a registered marketplace account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Wallet       float64   `json:"wallet"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name}
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is a direct message between two users. Immutable once persisted.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GigFields carries the caller supplied attributes of a new gig.
type GigFields struct {
	Title       string
	Description string
	Tags        []string
	Price       float64
	Unit        string
}

// Normalize trims the textual fields, applies the default unit and reduces
// tags to a set, keeping the first occurrence order.
func (f GigFields) Normalize() GigFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Unit = strings.TrimSpace(f.Unit)
	if f.Unit == "" {
		f.Unit = DefaultUnit
	}
	tags := lo.Map(f.Tags, func(tag string, _ int) string { return strings.TrimSpace(tag) })
	f.Tags = lo.Uniq(lo.Compact(tags))
	return f
}

// Gig is a short-term task listing. Immutable once persisted.
type Gig struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Price       float64   `json:"price"`
	Unit        string    `json:"unit"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GigListing is a gig as shown in the marketplace feed, with its owner's
// public projection. Owner is nil when the owner record is missing.
type GigListing struct {
	Gig
	Owner *UserSummary `json:"owner"`
}
