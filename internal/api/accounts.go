package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Tyrowin/gigboard/internal/auth"
	"github.com/Tyrowin/gigboard/internal/store"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}

	user, err := h.store.CreateUser(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), hash)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, CodeEmailTaken)
			return
		}
		h.log.ErrorContext(r.Context(), "failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user.ID)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.store.FindUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, CodeInvalidCredentials)
			return
		}
		h.log.ErrorContext(r.Context(), "failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials)
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user.ID)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, userID string) {
	token, err := h.tokens.Issue(userID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to issue token", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, UserID: userID})
}
