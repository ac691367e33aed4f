package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Tyrowin/gigboard/internal/auth"
	"github.com/Tyrowin/gigboard/internal/store"
)

type createGigRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=40"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Unit        string   `json:"unit" validate:"max=40"`
}

func (h *Handler) handleListGigs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultGigLimit)
	if !ok {
		return
	}

	gigs, err := h.store.ListGigs(r.Context(), limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list gigs", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	if gigs == nil {
		gigs = []*store.GigListing{}
	}
	writeJSON(w, http.StatusOK, gigs)
}

// handleCreateGig creates a gig owned by the caller. The gig is broadcast to
// every real-time connection exactly as if it had been created there.
func (h *Handler) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	var req createGigRequest
	if !h.decode(w, r, &req) {
		return
	}

	ownerID := auth.GetUserID(r.Context())
	gig, err := h.gigs.CreateGig(r.Context(), ownerID, store.GigFields{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Price:       *req.Price,
		Unit:        req.Unit,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeUserNotFound)
			return
		}
		h.log.ErrorContext(r.Context(), "failed to create gig", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusCreated, gig)
}

func parseLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return 0, false
	}
	return min(limit, maxListLimit), true
}
