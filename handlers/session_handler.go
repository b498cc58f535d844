package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/tanushsahu-fisrt/ventApp/models"
)

type SessionHandler struct {
	deps Deps
}

// Get returns one session. Only a participant may read it.
func (h *SessionHandler) Get(e *core.RequestEvent) error {
	session, err := h.deps.Sessions.GetSession(e.Request.Context(), e.Request.PathValue("sessionId"))
	if err != nil {
		return apiError(err)
	}
	if session.VenterID != e.Auth.Id && session.ListenerID != e.Auth.Id {
		return e.JSON(http.StatusForbidden, map[string]string{"error": "not your session"})
	}
	return e.JSON(http.StatusOK, session)
}

type endSessionRequest struct {
	ElapsedSeconds int    `json:"elapsed_seconds"`
	EndType        string `json:"end_type"`
}

// End finalizes a session on behalf of a participant. Ending an
// already-ended or missing session succeeds, so both sides and the expiry
// timer can all report the end.
func (h *SessionHandler) End(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("sessionId")

	session, err := h.deps.Sessions.GetSession(e.Request.Context(), sessionID)
	if err == nil && session.VenterID != e.Auth.Id && session.ListenerID != e.Auth.Id {
		return e.JSON(http.StatusForbidden, map[string]string{"error": "not your session"})
	}

	var req endSessionRequest
	if err := e.BindBody(&req); err != nil {
		return apiError(&models.ValidationError{Field: "body", Reason: "invalid request body"})
	}

	endType := req.EndType
	switch endType {
	case models.EndTypeManual, models.EndTypeAuto, models.EndTypeError:
	case "":
		endType = models.EndTypeManual
	default:
		return apiError(&models.ValidationError{Field: "end_type", Reason: "unknown end type"})
	}
	if req.ElapsedSeconds < 0 {
		return apiError(&models.ValidationError{Field: "elapsed_seconds", Reason: "must not be negative"})
	}

	ended, err := h.deps.Sessions.EndSession(e.Request.Context(), sessionID, endType,
		time.Duration(req.ElapsedSeconds)*time.Second)
	if err != nil {
		return apiError(err)
	}
	if ended == nil {
		return e.JSON(http.StatusOK, map[string]bool{"ended": true})
	}
	return e.JSON(http.StatusOK, ended)
}
