package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
)

type RoomHandler struct {
	deps Deps
}

// List returns browsable open rooms, longest-waiting venter first.
func (h *RoomHandler) List(e *core.RequestEvent) error {
	rooms, err := h.deps.Rooms.ListOpenRooms(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"rooms": rooms})
}

// Join claims a room for the calling listener and returns the session
// descriptor on success.
func (h *RoomHandler) Join(e *core.RequestEvent) error {
	userID := e.Auth.Id

	if err := h.deps.Limiter.AllowUser(e.Request.Context(), userID); err != nil {
		return apiError(err)
	}

	desc, err := h.deps.Rooms.JoinRoom(e.Request.Context(), e.Request.PathValue("roomId"), userID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, desc)
}
