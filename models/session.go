package models

import (
	"time"
)

const (
	SessionActive = "active"
	SessionEnded  = "ended"

	EndTypeManual = "manual-ended"
	EndTypeAuto   = "auto-ended"
	EndTypeError  = "error-ended"
)

type Session struct {
	ID              string    `json:"id"`
	VenterID        string    `json:"venter_id"`
	ListenerID      string    `json:"listener_id"`
	VentText        string    `json:"vent_text"`
	Plan            string    `json:"plan"`
	ChannelName     string    `json:"channel_name"`
	RoomID          string    `json:"room_id,omitempty"`
	Status          string    `json:"status"` // active, ended
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	EndType         string    `json:"end_type,omitempty"` // manual-ended, auto-ended, error-ended

	// Back-references for queue cleanup on session end.
	VenterQueueDocID   string `json:"venter_queue_doc_id"`
	ListenerQueueDocID string `json:"listener_queue_doc_id"`

	EndedAt time.Time `json:"ended_at,omitempty"`
}

// SessionDescriptor is handed to both parties after a successful claim.
// It carries everything needed to join the voice channel.
type SessionDescriptor struct {
	SessionID   string `json:"session_id"`
	ChannelName string `json:"channel_name"`
	VenterID    string `json:"venter_id"`
	ListenerID  string `json:"listener_id"`
	VentText    string `json:"vent_text"`
	Plan        string `json:"plan"`
	RoomID      string `json:"room_id,omitempty"`
	IsHost      bool   `json:"is_host"`
}
