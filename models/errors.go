package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the matching/session protocol. Repositories return
// these as-is; only the coordinating engines decide retry vs. surface.
var (
	// ErrCandidateGone means a claim transaction found one of the two
	// queue entries no longer waiting. The claim lost the race and the
	// engine should retry with a fresh candidate.
	ErrCandidateGone = errors.New("matching: candidate no longer available")

	// ErrRoomUnavailable means the room was already joined or full at
	// transaction time.
	ErrRoomUnavailable = errors.New("room: room not available or already joined")

	// ErrNotFound marks a missing document. Dequeue and EndSession treat
	// it as success.
	ErrNotFound = errors.New("store: document not found")

	// ErrConnectivity means the document store is unreachable; new
	// searches must not start.
	ErrConnectivity = errors.New("store: connectivity check failed")

	// ErrAlreadyMatching enforces at-most-one concurrent search per user.
	ErrAlreadyMatching = errors.New("matching: search already in progress")

	// ErrRtcUnavailable means the voice engine cannot run on this
	// platform; session operations fail immediately instead of hanging.
	ErrRtcUnavailable = errors.New("rtc: engine unavailable")
)

// ValidationError reports bad caller input. It is surfaced directly and
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// RtcConnectionError wraps a voice join/transport failure after retries
// were exhausted.
type RtcConnectionError struct {
	Channel  string
	Attempts int
	Err      error
}

func (e *RtcConnectionError) Error() string {
	return fmt.Sprintf("rtc: join %q failed after %d attempts: %v", e.Channel, e.Attempts, e.Err)
}

func (e *RtcConnectionError) Unwrap() error { return e.Err }
