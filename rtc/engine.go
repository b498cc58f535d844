// Package rtc is the boundary to the voice transport. The session
// lifecycle manager only sees the Engine interface and its connection-state
// machine; the concrete transport lives behind it.
package rtc

import "context"

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Events are the engine callbacks a session reacts to. Unset callbacks are
// skipped.
type Events struct {
	OnJoined                 func()
	OnUserJoined             func(id string)
	OnUserLeft               func(id string)
	OnError                  func(code int)
	OnConnectionStateChanged func(state ConnectionState)
}

// Engine is one live voice-engine instance. Join is asynchronous at the
// transport level but blocks until the channel is established or ctx
// expires; callers bound it with an explicit timeout.
type Engine interface {
	Join(ctx context.Context, channel, token string) error
	Leave() error
	MuteLocal(muted bool) error
	SetSpeaker(enabled bool) error
	SetEvents(events Events)
	Close() error
}
