package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	RoleVenter   = "venter"
	RoleListener = "listener"

	StatusWaiting = "waiting"
	StatusMatched = "matched"

	RoomOpen   = "open"
	RoomJoined = "joined"

	// PreviewTextLimit is the number of vent-text characters exposed to
	// browsing listeners before a session starts.
	PreviewTextLimit = 100

	VentTextMinLength = 10
	VentTextMaxLength = 500
)

type QueueEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`   // venter, listener
	Status    string    `json:"status"` // waiting, matched
	CreatedAt time.Time `json:"created_at"`
	AddedAt   int64     `json:"added_at"` // client millis, FIFO tie-break
	SessionID string    `json:"session_id,omitempty"`
	MatchedAt time.Time `json:"matched_at,omitempty"`

	// Venter-only room fields.
	VentText      string `json:"vent_text,omitempty"`
	Plan          string `json:"plan,omitempty"`
	PreviewText   string `json:"preview_text,omitempty"`
	RoomID        string `json:"room_id,omitempty"`
	RoomStatus    string `json:"room_status,omitempty"` // open, joined
	ListenerCount int    `json:"listener_count,omitempty"`
	MaxListeners  int    `json:"max_listeners,omitempty"`
}

// RoomSummary is what a browsing listener sees for an open venter room.
type RoomSummary struct {
	EntryID            string    `json:"entry_id"`
	RoomID             string    `json:"room_id"`
	Plan               string    `json:"plan"`
	PreviewText        string    `json:"preview_text"`
	TimeWaitingMinutes int       `json:"time_waiting_minutes"`
	ListenerCount      int       `json:"listener_count"`
	MaxListeners       int       `json:"max_listeners"`
	CreatedAt          time.Time `json:"created_at"`
}

type QueueStats struct {
	VentersWaiting   int       `json:"venters_waiting"`
	ListenersWaiting int       `json:"listeners_waiting"`
	ActiveSessions   int       `json:"active_sessions"`
	LastUpdated      time.Time `json:"last_updated"`

	// Degraded is set when one of the counts failed; stats are best-effort
	// and never block matching.
	Degraded bool `json:"degraded,omitempty"`
}

// DerivePreviewText builds the anonymized listing text from a full vent text.
// Limits are character counts, so multibyte text is cut on a rune boundary.
func DerivePreviewText(ventText string) string {
	trimmed := strings.TrimSpace(ventText)
	if utf8.RuneCountInString(trimmed) > PreviewTextLimit {
		return string([]rune(trimmed)[:PreviewTextLimit]) + "..."
	}
	return trimmed
}

// ValidateVentText enforces the venter input rules shared by the queue
// repository and the matching engine.
func ValidateVentText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ValidationError{Field: "vent_text", Reason: "vent text is required"}
	}
	length := utf8.RuneCountInString(trimmed)
	if length < VentTextMinLength {
		return &ValidationError{Field: "vent_text", Reason: "vent text must be at least 10 characters"}
	}
	if length > VentTextMaxLength {
		return &ValidationError{Field: "vent_text", Reason: "vent text must be less than 500 characters"}
	}
	return nil
}
