// Package badgerdb is an embedded store backed by BadgerDB. It needs no
// external service, which makes it the default for development and tests.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Tyrowin/gigboard/internal/store"
)

const (
	userPrefix  = "user:"
	emailPrefix = "email:"
	gigPrefix   = "gig:"
	msgPrefix   = "msg:"
)

// Store persists users, gigs and messages as JSON values in BadgerDB.
//
// Key layout:
//
//	user:{id}                          -> userRecord
//	email:{lower(email)}               -> user id
//	gig:{unix_nano_padded}:{id}        -> store.Gig
//	msg:{lo_id}:{hi_id}:{unix_nano}:{id} -> store.Message
//
// The 19-digit zero padded timestamp keeps lexicographical order equal to
// chronological order. Conversation keys sort both participant ids so a
// single prefix scan returns the two directions of a conversation.
type Store struct {
	db    *badger.DB
	log   *slog.Logger
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger used for store diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open opens a Badger database at path. An empty path opens an in-memory
// database whose content is lost on Close.
func Open(path string, opts ...Option) (*Store, error) {
	badgerOpts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an already opened Badger database.
func New(db *badger.DB, opts ...Option) *Store {
	s := &Store{db: db, log: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type userRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Wallet       float64   `json:"wallet"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r userRecord) toUser() *store.User {
	return &store.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Wallet:       r.Wallet,
		CreatedAt:    r.CreatedAt,
	}
}

// CreateUser registers a user. Emails are unique, case-insensitively.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record := userRecord{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Wallet:       store.DefaultWallet,
		CreatedAt:    s.clock().UTC(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	emailKey := []byte(emailPrefix + strings.ToLower(email))

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey); err == nil {
			return store.ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(emailKey, []byte(record.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(userPrefix+record.ID), value)
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return record.toUser(), nil
}

// FindUserByEmail returns the full user record, including the password hash.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailPrefix + strings.ToLower(email)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userPrefix+string(id), &record)
	})
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", translate(err))
	}
	return record.toUser(), nil
}

// FindUserByID returns the public projection of a user.
func (s *Store) FindUserByID(ctx context.Context, id string) (*store.UserSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userPrefix+id, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", id, translate(err))
	}
	return record.toUser().Summary(), nil
}

// InsertMessage persists a message after checking both participants exist.
func (s *Store) InsertMessage(ctx context.Context, senderID, recipientID, text string) (*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := &store.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   s.clock().UTC(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	key := fmt.Sprintf("%s%019d:%s", conversationPrefix(senderID, recipientID), msg.CreatedAt.UnixNano(), msg.ID)

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, id := range []string{senderID, recipientID} {
			if _, err := txn.Get([]byte(userPrefix + id)); err != nil {
				return fmt.Errorf("user %q: %w", id, err)
			}
		}
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", translate(err))
	}
	return msg, nil
}

// InsertGig persists a gig owned by ownerID.
func (s *Store) InsertGig(ctx context.Context, ownerID string, fields store.GigFields) (*store.Gig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
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
	value, err := json.Marshal(gig)
	if err != nil {
		return nil, fmt.Errorf("encode gig: %w", err)
	}
	key := fmt.Sprintf("%s%019d:%s", gigPrefix, gig.CreatedAt.UnixNano(), gig.ID)

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(userPrefix + ownerID)); err != nil {
			return fmt.Errorf("owner %q: %w", ownerID, err)
		}
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return nil, fmt.Errorf("insert gig: %w", translate(err))
	}
	return gig, nil
}

// ListGigs returns up to limit gigs, newest first, each with its owner's
// name read in the same transaction.
func (s *Store) ListGigs(ctx context.Context, limit int) ([]*store.GigListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gigs := make([]*store.GigListing, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		owners := make(map[string]*store.UserSummary)
		return scanReverse(txn, gigPrefix, limit, func(val []byte) error {
			listing := &store.GigListing{}
			if err := json.Unmarshal(val, &listing.Gig); err != nil {
				return err
			}
			owner, seen := owners[listing.OwnerID]
			if !seen {
				var record userRecord
				err := getJSON(txn, userPrefix+listing.OwnerID, &record)
				switch {
				case err == nil:
					owner = &store.UserSummary{ID: record.ID, Name: record.Name}
				case !errors.Is(err, badger.ErrKeyNotFound):
					return fmt.Errorf("owner %q: %w", listing.OwnerID, err)
				}
				owners[listing.OwnerID] = owner
			}
			listing.Owner = owner
			gigs = append(gigs, listing)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list gigs: %w", err)
	}
	return gigs, nil
}

// ListConversation returns the latest limit messages exchanged between two
// users, oldest first.
func (s *Store) ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	messages := make([]*store.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanReverse(txn, conversationPrefix(userID, otherUserID), limit, func(val []byte) error {
			var msg store.Message
			if err := json.Unmarshal(val, &msg); err != nil {
				return err
			}
			messages = append(messages, &msg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.log.Info("Closing BadgerDB...")
	return s.db.Close()
}

func conversationPrefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return msgPrefix + a + ":" + b + ":"
}

// scanReverse walks the keys under prefix from the highest to the lowest and
// stops after limit values when limit is positive.
func scanReverse(txn *badger.Txn, prefix string, limit int, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append([]byte(prefix), 0xFF)
	count := 0
	for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
		if limit > 0 && count >= limit {
			break
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
		count++
	}
	return nil
}

func getJSON(txn *badger.Txn, key string, dst any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func translate(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return err
}
