package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
)

// WebRTCEngine implements Engine over a pion PeerConnection. Joining a
// channel negotiates an audio-only offer/answer exchange with the media
// gateway over HTTP; the gateway bridges everyone on the same channel.
type WebRTCEngine struct {
	gatewayURL string
	client     *http.Client

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	sender  *webrtc.RTPSender
	track   *webrtc.TrackLocalStaticSample
	events  Events
	state   ConnectionState
	muted   bool
	speaker bool
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func NewWebRTCEngine(gatewayURL string) *WebRTCEngine {
	return &WebRTCEngine{
		gatewayURL: gatewayURL,
		client:     &http.Client{},
		state:      StateDisconnected,
		speaker:    true,
	}
}

func (e *WebRTCEngine) SetEvents(events Events) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = events
}

func (e *WebRTCEngine) Join(ctx context.Context, channel, token string) error {
	e.mu.Lock()
	if e.pc != nil {
		e.mu.Unlock()
		return fmt.Errorf("already joined a channel")
	}
	e.setStateLocked(StateConnecting)
	e.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(DefaultWebRTCConfig())
	if err != nil {
		e.fail()
		return fmt.Errorf("peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "ventbox")
	if err != nil {
		pc.Close()
		e.fail()
		return fmt.Errorf("local track: %w", err)
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		e.fail()
		return fmt.Errorf("add track: %w", err)
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Printf("ICE state for channel %s: %s", channel, s)
		switch s {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			e.setState(StateConnected)
		case webrtc.ICEConnectionStateDisconnected:
			e.setState(StateReconnecting)
		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
			e.fail()
		}
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if fn := e.callbacks().OnUserJoined; fn != nil {
			fn(remote.StreamID())
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			e.handleGatewayEvent(msg.Data)
		})
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		e.fail()
		return fmt.Errorf("create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		e.fail()
		return fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		e.fail()
		return ctx.Err()
	}

	answer, err := e.exchangeOffer(ctx, channel, token, pc.LocalDescription().SDP)
	if err != nil {
		pc.Close()
		e.fail()
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		pc.Close()
		e.fail()
		return fmt.Errorf("set remote description: %w", err)
	}

	e.mu.Lock()
	e.pc = pc
	e.sender = sender
	e.track = track
	events := e.events
	e.mu.Unlock()

	if events.OnJoined != nil {
		events.OnJoined()
	}
	return nil
}

func (e *WebRTCEngine) Leave() error {
	e.mu.Lock()
	pc := e.pc
	e.pc = nil
	e.sender = nil
	e.track = nil
	e.setStateLocked(StateDisconnected)
	e.mu.Unlock()

	if pc == nil {
		return nil
	}
	return pc.Close()
}

// MuteLocal detaches the outgoing audio track rather than touching device
// capture, so unmuting is instant.
func (e *WebRTCEngine) MuteLocal(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sender == nil {
		e.muted = muted
		return nil
	}

	var err error
	if muted {
		err = e.sender.ReplaceTrack(nil)
	} else {
		err = e.sender.ReplaceTrack(e.track)
	}
	if err != nil {
		return fmt.Errorf("mute local: %w", err)
	}
	e.muted = muted
	return nil
}

// SetSpeaker records the requested playback route. Routing is applied by
// the platform audio layer, outside this process.
func (e *WebRTCEngine) SetSpeaker(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speaker = enabled
	return nil
}

func (e *WebRTCEngine) Close() error {
	return e.Leave()
}

type offerRequest struct {
	Channel string `json:"channel"`
	Token   string `json:"token"`
	SDP     string `json:"sdp"`
}

type offerResponse struct {
	SDP string `json:"sdp"`
}

func (e *WebRTCEngine) exchangeOffer(ctx context.Context, channel, token, sdp string) (string, error) {
	body, err := json.Marshal(offerRequest{Channel: channel, Token: token, SDP: sdp})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("media gateway offer failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media gateway returned status %d", resp.StatusCode)
	}

	var out offerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("media gateway answer decode failed: %w", err)
	}
	return out.SDP, nil
}

type gatewayEvent struct {
	Type   string `json:"type"` // user-left, error
	UserID string `json:"user_id,omitempty"`
	Code   int    `json:"code,omitempty"`
}

func (e *WebRTCEngine) handleGatewayEvent(data []byte) {
	var event gatewayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return
	}

	events := e.callbacks()
	switch event.Type {
	case "user-left":
		if events.OnUserLeft != nil {
			events.OnUserLeft(event.UserID)
		}
	case "error":
		if events.OnError != nil {
			events.OnError(event.Code)
		}
	}
}

func (e *WebRTCEngine) callbacks() Events {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

func (e *WebRTCEngine) setState(state ConnectionState) {
	e.mu.Lock()
	e.setStateLocked(state)
	e.mu.Unlock()
}

func (e *WebRTCEngine) setStateLocked(state ConnectionState) {
	if e.state == state {
		return
	}
	e.state = state
	if fn := e.events.OnConnectionStateChanged; fn != nil {
		go fn(state)
	}
}

func (e *WebRTCEngine) fail() {
	e.setState(StateFailed)
}
