package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"github.com/tanushsahu-fisrt/ventApp/models"
)

type QueueHandler struct {
	deps Deps
}

// Stats returns the live queue aggregates shown on the home screen.
func (h *QueueHandler) Stats(e *core.RequestEvent) error {
	stats := h.deps.Queue.Stats(e.Request.Context())
	return e.JSON(http.StatusOK, stats)
}

// Dequeue removes the caller's own queue entry. Removing an entry that is
// already gone succeeds.
func (h *QueueHandler) Dequeue(e *core.RequestEvent) error {
	entryID := e.Request.PathValue("entryId")

	entry, err := h.deps.Queue.GetEntry(e.Request.Context(), entryID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return apiError(err)
	}
	if entry != nil && entry.UserID != e.Auth.Id {
		return e.JSON(http.StatusForbidden, map[string]string{"error": "not your queue entry"})
	}

	if err := h.deps.Queue.Dequeue(e.Request.Context(), entryID); err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]bool{"removed": true})
}
