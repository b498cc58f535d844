// Package handlers exposes the queue, matching, room and session
// operations over the PocketBase router.
package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/security"
	"github.com/tanushsahu-fisrt/ventApp/services"
)

// Deps bundles everything the route handlers need.
type Deps struct {
	Queue    *services.QueueService
	Matching *services.MatchingService
	Rooms    *services.RoomService
	Sessions *services.SessionService
	Notifier *services.Notifier
	Limiter  *security.RateLimiter
}

// Register mounts all API routes. Every route requires an authenticated
// user; the auth record id is the queue identity.
func Register(se *core.ServeEvent, deps Deps) {
	g := se.Router.Group("/api/ventbox")
	g.Bind(apis.RequireAuth())

	q := &QueueHandler{deps: deps}
	g.GET("/queue/stats", q.Stats)
	g.DELETE("/queue/{entryId}", q.Dequeue)

	m := &MatchingHandler{deps: deps}
	g.POST("/matching/start", m.Start)
	g.POST("/matching/stop", m.Stop)
	g.GET("/matching/estimate", m.Estimate)

	r := &RoomHandler{deps: deps}
	g.GET("/rooms", r.List)
	g.POST("/rooms/{roomId}/join", r.Join)

	s := &SessionHandler{deps: deps}
	g.GET("/sessions/{sessionId}", s.Get)
	g.POST("/sessions/{sessionId}/end", s.End)

	g.GET("/plans", listPlans)
}

func listPlans(e *core.RequestEvent) error {
	return e.JSON(http.StatusOK, models.Plans)
}

// apiError maps service errors onto HTTP responses.
func apiError(err error) error {
	var validation *models.ValidationError
	switch {
	case errors.As(err, &validation):
		return apis.NewBadRequestError(validation.Error(), nil)
	case errors.Is(err, models.ErrNotFound):
		return apis.NewNotFoundError("not found", nil)
	case errors.Is(err, models.ErrAlreadyMatching):
		return apis.NewApiError(http.StatusConflict, "a matching search is already in progress", nil)
	case errors.Is(err, models.ErrRoomUnavailable):
		return apis.NewApiError(http.StatusConflict, "room is no longer available", nil)
	case errors.Is(err, models.ErrConnectivity):
		return apis.NewApiError(http.StatusServiceUnavailable, "service temporarily unavailable, please try again", nil)
	case errors.Is(err, security.ErrRateLimited):
		return apis.NewApiError(http.StatusTooManyRequests, security.ErrRateLimited.Error(), nil)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "something went wrong", nil)
	}
}
