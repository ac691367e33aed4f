// Package api serves the request/response side of the marketplace: account
// registration and login, gig listing and creation, and conversation
// history. Gigs created here go through the real-time broadcast as well.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/gigboard/internal/auth"
	"github.com/Tyrowin/gigboard/internal/store"
)

//go:generate go run go.uber.org/mock/mockgen -source=api.go -destination=mocks/api_mock.go -package=mocks

// Store is the persistence used by the API.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error)
	FindUserByEmail(ctx context.Context, email string) (*store.User, error)
	ListGigs(ctx context.Context, limit int) ([]*store.GigListing, error)
	ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]*store.Message, error)
}

// GigCreator persists a gig and broadcasts it to connected clients.
type GigCreator interface {
	CreateGig(ctx context.Context, ownerID string, fields store.GigFields) (*store.Gig, error)
}

// TokenService issues and validates access tokens.
type TokenService interface {
	auth.TokenValidator
	Issue(userID string) (string, error)
}

// Error codes of the JSON error envelope.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeValidationFailed   = "validation_failed"
	CodeEmailTaken         = "email_taken"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserNotFound       = "user_not_found"
	CodeInternal           = "internal_error"
)

const (
	defaultGigLimit     = 100
	defaultHistoryLimit = 200
	maxListLimit        = 500
	maxBodyBytes        = 1 << 20
)

// Handler serves the /api routes.
type Handler struct {
	store    Store
	gigs     GigCreator
	tokens   TokenService
	log      *slog.Logger
	validate *validator.Validate
}

func NewHandler(st Store, gigs GigCreator, tokens TokenService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    st,
		gigs:     gigs,
		tokens:   tokens,
		log:      logger,
		validate: validator.New(),
	}
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.AllowContentType("application/json"))

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.tokens, h.log))
		r.Get("/gigs", h.handleListGigs)
		r.Post("/gigs", h.handleCreateGig)
		r.Get("/messages/{otherUserID}", h.handleConversation)
	})
	return r
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationError(w, verrs)
			return false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeValidationError(w http.ResponseWriter, verrs validator.ValidationErrors) {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  CodeValidationFailed,
		"fields": fields,
	})
}
