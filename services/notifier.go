package services

import (
	"fmt"
	"log"

	pubnub "github.com/pubnub/go"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/models"
)

// Notifier pushes per-user realtime events over PubNub. A nil Notifier is
// valid and drops every message, which keeps local development working
// without PubNub credentials.
type Notifier struct {
	client *pubnub.PubNub
}

func NewNotifier(cfg *config.Config) *Notifier {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		log.Printf("pubnub keys not configured, realtime notifications disabled")
		return nil
	}

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.UUID = "ventapp-server"

	return &Notifier{client: pubnub.NewPubNub(pnConfig)}
}

func userChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

func (n *Notifier) publish(channel string, message map[string]any) {
	if n == nil || n.client == nil {
		return
	}

	_, status, err := n.client.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		log.Printf("pubnub publish to %s failed: %v", channel, err)
		return
	}
	if status.Error != nil {
		log.Printf("pubnub publish to %s returned status %d", channel, status.StatusCode)
	}
}

// NotifyMatchFound tells both participants their session is ready.
func (n *Notifier) NotifyMatchFound(desc models.SessionDescriptor) {
	for _, userID := range []string{desc.VenterID, desc.ListenerID} {
		n.publish(userChannel(userID), map[string]any{
			"type":         "match-found",
			"session_id":   desc.SessionID,
			"channel_name": desc.ChannelName,
			"plan":         desc.Plan,
			"room_id":      desc.RoomID,
		})
	}
}

// NotifyMatchFailed tells a user their search ended without a partner.
func (n *Notifier) NotifyMatchFailed(userID, reason string) {
	n.publish(userChannel(userID), map[string]any{
		"type":   "match-failed",
		"reason": reason,
	})
}

// NotifySessionEnded tells a participant the session finished and why.
func (n *Notifier) NotifySessionEnded(userID, sessionID, endType string, durationSeconds int) {
	n.publish(userChannel(userID), map[string]any{
		"type":             "session-ended",
		"session_id":       sessionID,
		"end_type":         endType,
		"duration_seconds": durationSeconds,
	})
}
