package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tyrowin/gigboard/internal/auth"
	"github.com/Tyrowin/gigboard/internal/store"
)

// handleConversation returns the latest messages exchanged between the
// caller and another user, oldest first.
func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultHistoryLimit)
	if !ok {
		return
	}

	userID := auth.GetUserID(r.Context())
	otherUserID := chi.URLParam(r, "otherUserID")

	messages, err := h.store.ListConversation(r.Context(), userID, otherUserID, limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to load conversation",
			"user_id", userID,
			"other_user_id", otherUserID,
			"error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}
