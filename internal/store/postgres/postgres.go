// Package postgres persists users, gigs and messages in PostgreSQL through
// database/sql and the lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Tyrowin/gigboard/internal/store"
)

//go:embed schema.sql
var schema string

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// Store is a PostgreSQL-backed store.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate creates the tables and indexes when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CreateUser registers a user. Emails are unique, case-insensitively.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	user := &store.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Wallet:       store.DefaultWallet,
		CreatedAt:    s.clock().UTC(),
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, wallet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Wallet, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", translate(err))
	}
	return user, nil
}

// FindUserByEmail returns the full user record, including the password hash.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var user store.User
	query := `
		SELECT id, name, email, password_hash, wallet, created_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`
	err := s.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Wallet, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", translate(err))
	}
	return &user, nil
}

// FindUserByID returns the public projection of a user. Identifiers that are
// not UUIDs cannot exist and report store.ErrNotFound.
func (s *Store) FindUserByID(ctx context.Context, id string) (*store.UserSummary, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("find user %q: %w", id, store.ErrNotFound)
	}
	var summary store.UserSummary
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM users WHERE id = $1`, id).
		Scan(&summary.ID, &summary.Name)
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", id, translate(err))
	}
	return &summary, nil
}

// InsertMessage persists a message. Foreign keys enforce that both
// participants exist.
func (s *Store) InsertMessage(ctx context.Context, senderID, recipientID, text string) (*store.Message, error) {
	for _, id := range []string{senderID, recipientID} {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("insert message: user %q: %w", id, store.ErrNotFound)
		}
	}
	msg := &store.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   s.clock().UTC(),
	}
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.SenderID, msg.RecipientID, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", translate(err))
	}
	return msg, nil
}

// InsertGig persists a gig owned by ownerID.
func (s *Store) InsertGig(ctx context.Context, ownerID string, fields store.GigFields) (*store.Gig, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("insert gig: owner %q: %w", ownerID, store.ErrNotFound)
	}
	fields = fields.Normalize()
	gig := &store.Gig{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       fields.Title,
		Description: fields.Description,
		Tags:        fields.Tags,
		Price:       fields.Price,
		Unit:        fields.Unit,
		CreatedAt:   s.clock().UTC(),
	}
	query := `
		INSERT INTO gigs (id, owner_id, title, description, tags, price, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		gig.ID, gig.OwnerID, gig.Title, gig.Description, pq.Array(gig.Tags), gig.Price, gig.Unit, gig.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert gig: %w", translate(err))
	}
	return gig, nil
}

// ListGigs returns up to limit gigs, newest first, each with its owner's
// name. A non-positive limit returns every gig.
func (s *Store) ListGigs(ctx context.Context, limit int) ([]*store.GigListing, error) {
	query := `
		SELECT g.id, g.owner_id, g.title, g.description, g.tags, g.price, g.unit, g.created_at, u.name
		FROM gigs g
		JOIN users u ON u.id = g.owner_id
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT NULLIF($1, 0)
	`
	rows, err := s.db.QueryContext(ctx, query, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list gigs: %w", err)
	}
	defer rows.Close()

	gigs := make([]*store.GigListing, 0)
	for rows.Next() {
		listing := &store.GigListing{Owner: &store.UserSummary{}}
		gig := &listing.Gig
		var tags pq.StringArray
		if err := rows.Scan(&gig.ID, &gig.OwnerID, &gig.Title, &gig.Description, &tags, &gig.Price, &gig.Unit, &gig.CreatedAt, &listing.Owner.Name); err != nil {
			return nil, fmt.Errorf("scan gig: %w", err)
		}
		gig.Tags = []string(tags)
		listing.Owner.ID = gig.OwnerID
		gigs = append(gigs, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gigs: %w", err)
	}
	return gigs, nil
}

// ListConversation returns the latest limit messages exchanged between two
// users, oldest first.
func (s *Store) ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*store.Message, error) {
	for _, id := range []string{userID, otherUserID} {
		if _, err := uuid.Parse(id); err != nil {
			return []*store.Message{}, nil
		}
	}
	query := `
		SELECT id, sender_id, recipient_id, text, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($3, 0)
	`
	rows, err := s.db.QueryContext(ctx, query, userID, otherUserID, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %w", store.ErrNotFound, err)
		case pqUniqueViolation:
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		}
	}
	return err
}
