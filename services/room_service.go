package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/store"
	"github.com/tanushsahu-fisrt/ventApp/utils"
)

// RoomService exposes the room-browse side of matching: every waiting
// venter is an open room a listener can inspect and join directly, as an
// alternative to automatic matching.
type RoomService struct {
	Store    store.Store
	Notifier *Notifier
	cfg      *config.Config
}

func NewRoomService(st store.Store, notifier *Notifier, cfg *config.Config) *RoomService {
	return &RoomService{
		Store:    st,
		Notifier: notifier,
		cfg:      cfg,
	}
}

// ListOpenRooms returns joinable venter rooms, longest-waiting first. Only
// the preview text is exposed; the full vent text stays private until a
// session exists.
func (s *RoomService) ListOpenRooms(ctx context.Context) ([]models.RoomSummary, error) {
	docs, err := s.Store.Find(ctx, store.Query{
		Collection: store.CollectionQueue,
		Filter: store.Fields{
			"role":       models.RoleVenter,
			"status":     models.StatusWaiting,
			"roomStatus": models.RoomOpen,
		},
		SortField: "addedAt",
		Limit:     s.cfg.OpenRoomsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list open rooms: %w", err)
	}

	now := time.Now().UnixMilli()
	rooms := make([]models.RoomSummary, 0, len(docs))
	for _, doc := range docs {
		waiting := 0
		if addedAt := doc.GetInt64("addedAt"); addedAt > 0 && now > addedAt {
			waiting = int((now - addedAt) / int64(time.Minute/time.Millisecond))
		}
		rooms = append(rooms, models.RoomSummary{
			RoomID:             doc.GetString("roomId"),
			EntryID:            doc.ID(),
			PreviewText:        doc.GetString("previewText"),
			Plan:               doc.GetString("plan"),
			ListenerCount:      doc.GetInt("listenerCount"),
			MaxListeners:       doc.GetInt("maxListeners"),
			TimeWaitingMinutes: waiting,
			CreatedAt:          doc.GetTime("created"),
		})
	}
	return rooms, nil
}

// JoinRoom claims a specific room for a listener. The whole hand-off runs
// in one transaction: the venter entry is re-read by room id and must
// still be open and waiting with capacity left, a matched listener entry
// is created, the venter flips to joined, and the session record comes to
// life. Two listeners racing for the last slot means exactly one wins; the
// other gets ErrRoomUnavailable.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, listenerID string) (*models.SessionDescriptor, error) {
	if roomID == "" {
		return nil, &models.ValidationError{Field: "room_id", Reason: "room id is required"}
	}
	if listenerID == "" {
		return nil, &models.ValidationError{Field: "user_id", Reason: "user id is required"}
	}

	var desc *models.SessionDescriptor

	err := s.Store.RunInTransaction(ctx, func(tx store.Tx) error {
		docs, err := tx.Find(ctx, store.Query{
			Collection: store.CollectionQueue,
			Filter:     store.Fields{"roomId": roomID},
			Limit:      1,
		})
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return models.ErrRoomUnavailable
		}
		venter := docs[0]

		if venter.GetString("status") != models.StatusWaiting || venter.GetString("roomStatus") != models.RoomOpen {
			return models.ErrRoomUnavailable
		}
		maxListeners := venter.GetInt("maxListeners")
		if maxListeners <= 0 {
			maxListeners = 1
		}
		if venter.GetInt("listenerCount") >= maxListeners {
			return models.ErrRoomUnavailable
		}
		if venter.GetString("userId") == listenerID {
			return models.ErrRoomUnavailable
		}

		now := time.Now()
		channelName := utils.GenerateChannelName()

		listener, err := tx.Create(ctx, store.CollectionQueue, store.Fields{
			"userId":  listenerID,
			"role":    models.RoleListener,
			"status":  models.StatusMatched,
			"addedAt": now.UnixMilli(),
			"roomId":  roomID,
		})
		if err != nil {
			return fmt.Errorf("create listener entry: %w", err)
		}

		plan := venter.GetString("plan")
		if _, ok := models.PlanByName(plan); !ok {
			plan = models.DefaultPlanName
		}

		session, err := tx.Create(ctx, store.CollectionSessions, store.Fields{
			"venterId":           venter.GetString("userId"),
			"listenerId":         listenerID,
			"ventText":           venter.GetString("ventText"),
			"plan":               plan,
			"channelName":        channelName,
			"roomId":             roomID,
			"status":             models.SessionActive,
			"startTime":          now,
			"venterQueueDocId":   venter.ID(),
			"listenerQueueDocId": listener.ID(),
		})
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		if err := tx.Update(ctx, store.CollectionQueue, venter.ID(), store.Fields{
			"status":        models.StatusMatched,
			"roomStatus":    models.RoomJoined,
			"listenerCount": venter.GetInt("listenerCount") + 1,
			"sessionId":     session.ID(),
			"matchedAt":     now,
		}); err != nil {
			return err
		}
		if err := tx.Update(ctx, store.CollectionQueue, listener.ID(), store.Fields{
			"sessionId": session.ID(),
			"matchedAt": now,
		}); err != nil {
			return err
		}

		desc = &models.SessionDescriptor{
			SessionID:   session.ID(),
			ChannelName: channelName,
			VenterID:    venter.GetString("userId"),
			ListenerID:  listenerID,
			VentText:    venter.GetString("ventText"),
			Plan:        plan,
			RoomID:      roomID,
			IsHost:      false,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrRoomUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("join room %s: %w", roomID, err)
	}

	log.Printf("Listener %s joined room %s, session %s", listenerID, roomID, desc.SessionID)
	s.Notifier.NotifyMatchFound(*desc)
	return desc, nil
}
