package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/services"
)

type MatchingHandler struct {
	deps Deps
}

type startMatchingRequest struct {
	Role     string `json:"role"`
	VentText string `json:"vent_text"`
	Plan     string `json:"plan"`
}

// Start begins an automatic search for the caller. The request returns as
// soon as the search is queued; the outcome arrives on the caller's
// realtime channel as match-found or match-failed.
func (h *MatchingHandler) Start(e *core.RequestEvent) error {
	userID := e.Auth.Id

	if err := h.deps.Limiter.AllowUser(e.Request.Context(), userID); err != nil {
		return apiError(err)
	}

	var req startMatchingRequest
	if err := e.BindBody(&req); err != nil {
		return apiError(&models.ValidationError{Field: "body", Reason: "invalid request body"})
	}
	if req.Role == models.RoleVenter && req.Plan == "" {
		req.Plan = models.DefaultPlanName
	}

	err := h.deps.Matching.StartMatching(e.Request.Context(), userID, req.Role, req.VentText, req.Plan,
		func(result services.MatchResult) {
			if result.Err != nil {
				h.deps.Notifier.NotifyMatchFailed(userID, result.Err.Error())
			}
			// Successful matches are announced by the session claim itself.
		})
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusAccepted, map[string]any{
		"searching":      true,
		"estimated_wait": h.deps.Matching.EstimateWait(e.Request.Context(), req.Role),
	})
}

// Stop cancels the caller's search. Stopping with nothing in flight is
// fine.
func (h *MatchingHandler) Stop(e *core.RequestEvent) error {
	if err := h.deps.Matching.StopMatching(e.Request.Context(), e.Auth.Id); err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]bool{"stopped": true})
}

// Estimate returns the coarse wait-time band for a role.
func (h *MatchingHandler) Estimate(e *core.RequestEvent) error {
	role := e.Request.URL.Query().Get("role")
	if role != models.RoleVenter && role != models.RoleListener {
		return apiError(&models.ValidationError{Field: "role", Reason: "role must be venter or listener"})
	}
	return e.JSON(http.StatusOK, map[string]string{
		"estimated_wait": h.deps.Matching.EstimateWait(e.Request.Context(), role),
	})
}
