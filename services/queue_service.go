package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/store"
	"github.com/tanushsahu-fisrt/ventApp/utils"
)

// QueueService owns the queue collection: enqueue/dequeue, waiting-list
// snapshots and live subscriptions, aggregate stats and stale-entry cleanup.
// Waiting-list change notifications travel over Redis pub/sub; the documents
// themselves live in the transactional store.
type QueueService struct {
	Store store.Store
	Redis *redis.Client
	cfg   *config.Config

	lastAddedAt int64
}

func NewQueueService(st store.Store, redisClient *redis.Client, cfg *config.Config) *QueueService {
	return &QueueService{
		Store: st,
		Redis: redisClient,
		cfg:   cfg,
	}
}

// waitingChannel is the pub/sub channel that signals changes to one role's
// waiting list.
func waitingChannel(role string) string {
	return fmt.Sprintf("queue:waiting:%s", role)
}

type queueNotification struct {
	Role    string `json:"role"`
	EntryID string `json:"entry_id"`
	Change  string `json:"change"` // added, removed
}

// Enqueue inserts a waiting entry for the user. Venters must bring a valid
// vent text and a catalog plan; a room record is opened for them so
// listeners can browse in.
func (s *QueueService) Enqueue(ctx context.Context, userID, role, ventText, plan string) (*models.QueueEntry, error) {
	if userID == "" {
		return nil, &models.ValidationError{Field: "user_id", Reason: "user id is required"}
	}
	if role != models.RoleVenter && role != models.RoleListener {
		return nil, &models.ValidationError{Field: "role", Reason: "role must be venter or listener"}
	}

	fields := store.Fields{
		"userId":  userID,
		"role":    role,
		"status":  models.StatusWaiting,
		"addedAt": s.nextAddedAt(),
	}

	if role == models.RoleVenter {
		if err := models.ValidateVentText(ventText); err != nil {
			return nil, err
		}
		if _, ok := models.PlanByName(plan); !ok {
			return nil, &models.ValidationError{Field: "plan", Reason: "unknown plan"}
		}

		trimmed := strings.TrimSpace(ventText)
		fields["ventText"] = trimmed
		fields["plan"] = plan
		fields["previewText"] = models.DerivePreviewText(trimmed)
		fields["roomId"] = utils.GenerateRoomID()
		fields["roomStatus"] = models.RoomOpen
		fields["listenerCount"] = 0
		fields["maxListeners"] = 1
	}

	doc, err := s.Store.Create(ctx, store.CollectionQueue, fields)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", role, err)
	}

	s.publishChange(ctx, role, doc.ID(), "added")

	return docToQueueEntry(doc), nil
}

// Dequeue removes an entry. Removing an already-removed entry is a no-op,
// not an error, so teardown paths can call it blindly.
func (s *QueueService) Dequeue(ctx context.Context, entryID string) error {
	if entryID == "" {
		return nil
	}

	doc, err := s.Store.Get(ctx, store.CollectionQueue, entryID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	role := doc.GetString("role")

	if err := s.Store.Delete(ctx, store.CollectionQueue, entryID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	s.publishChange(ctx, role, entryID, "removed")
	return nil
}

// GetEntry fetches a single queue entry by ID.
func (s *QueueService) GetEntry(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	doc, err := s.Store.Get(ctx, store.CollectionQueue, entryID)
	if err != nil {
		return nil, err
	}
	return docToQueueEntry(doc), nil
}

// ListWaiting returns the waiting entries of one role, oldest first. The
// addedAt ordering is the FIFO tie-break the matching engine relies on.
func (s *QueueService) ListWaiting(ctx context.Context, role string, limit int) ([]models.QueueEntry, error) {
	docs, err := s.Store.Find(ctx, store.Query{
		Collection: store.CollectionQueue,
		Filter:     store.Fields{"role": role, "status": models.StatusWaiting},
		SortField:  "addedAt",
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.QueueEntry, len(docs))
	for i, doc := range docs {
		entries[i] = *docToQueueEntry(doc)
	}
	return entries, nil
}

// SubscribeWaiting delivers a waiting-list snapshot immediately and again
// after every queue change for the role. The returned function stops
// delivery; it is safe to call more than once and no callback fires after
// it returns.
func (s *QueueService) SubscribeWaiting(ctx context.Context, role string, fn func([]models.QueueEntry)) (func(), error) {
	sub := s.Redis.Subscribe(ctx, waitingChannel(role))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe waiting %s: %w", role, err)
	}

	var alive atomic.Bool
	alive.Store(true)

	deliver := func() {
		if !alive.Load() {
			return
		}
		entries, err := s.ListWaiting(ctx, role, s.cfg.WaitingListLimit)
		if err != nil {
			log.Printf("Waiting-list snapshot for %s failed: %v", role, err)
			return
		}
		// Re-check after the query: unsubscribe may have raced the fetch.
		if alive.Load() {
			fn(entries)
		}
	}

	go func() {
		deliver()
		for range sub.Channel() {
			deliver()
		}
	}()

	unsubscribe := func() {
		if alive.CompareAndSwap(true, false) {
			sub.Close()
		}
	}
	return unsubscribe, nil
}

// Stats runs the three aggregate counts concurrently. Stats are advisory:
// a partial failure yields zeroed stats with the Degraded flag instead of
// an error, so they can never block matching.
func (s *QueueService) Stats(ctx context.Context) *models.QueueStats {
	var (
		wg       sync.WaitGroup
		venters  int
		listens  int
		sessions int
		failed   atomic.Bool
	)

	count := func(dst *int, collection string, filter store.Fields) {
		defer wg.Done()
		n, err := s.Store.Count(ctx, collection, filter)
		if err != nil {
			log.Printf("Queue stats count failed (%s): %v", collection, err)
			failed.Store(true)
			return
		}
		*dst = n
	}

	wg.Add(3)
	// Venter availability follows the room model: only open rooms count.
	go count(&venters, store.CollectionQueue, store.Fields{
		"role": models.RoleVenter, "status": models.StatusWaiting, "roomStatus": models.RoomOpen,
	})
	go count(&listens, store.CollectionQueue, store.Fields{
		"role": models.RoleListener, "status": models.StatusWaiting,
	})
	go count(&sessions, store.CollectionSessions, store.Fields{
		"status": models.SessionActive,
	})
	wg.Wait()

	if failed.Load() {
		return &models.QueueStats{LastUpdated: time.Now(), Degraded: true}
	}

	return &models.QueueStats{
		VentersWaiting:   venters,
		ListenersWaiting: listens,
		ActiveSessions:   sessions,
		LastUpdated:      time.Now(),
	}
}

// CleanupStale deletes waiting entries older than maxAge in one batch. It
// is the safety net against orphans left by crashed clients.
func (s *QueueService) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	docs, err := s.Store.Find(ctx, store.Query{
		Collection: store.CollectionQueue,
		Filter:     store.Fields{"status": models.StatusWaiting},
		Less:       store.Fields{"addedAt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	removed := 0
	err = s.Store.RunInTransaction(ctx, func(tx store.Tx) error {
		removed = 0
		for _, doc := range docs {
			// Re-read inside the transaction: the entry may have been
			// matched (or removed) since the scan.
			current, err := tx.Get(ctx, store.CollectionQueue, doc.ID())
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				return err
			}
			if current.GetString("status") != models.StatusWaiting {
				continue
			}
			if err := tx.Delete(ctx, store.CollectionQueue, doc.ID()); err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		log.Printf("Cleaned up %d stale queue entries older than %s", removed, maxAge)
	}
	return removed, nil
}

// Ping probes store connectivity.
func (s *QueueService) Ping(ctx context.Context) error {
	return s.Store.Ping(ctx)
}

func (s *QueueService) publishChange(ctx context.Context, role, entryID, change string) {
	payload, _ := json.Marshal(queueNotification{Role: role, EntryID: entryID, Change: change})
	if err := s.Redis.Publish(ctx, waitingChannel(role), payload).Err(); err != nil {
		log.Printf("Publish queue change failed: %v", err)
	}
}

// nextAddedAt returns a strictly increasing millisecond ordering key for
// entries created by this process.
func (s *QueueService) nextAddedAt() int64 {
	for {
		prev := atomic.LoadInt64(&s.lastAddedAt)
		next := time.Now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if atomic.CompareAndSwapInt64(&s.lastAddedAt, prev, next) {
			return next
		}
	}
}

func docToQueueEntry(doc store.Doc) *models.QueueEntry {
	return &models.QueueEntry{
		ID:            doc.ID(),
		UserID:        doc.GetString("userId"),
		Role:          doc.GetString("role"),
		Status:        doc.GetString("status"),
		CreatedAt:     doc.GetTime("created"),
		AddedAt:       doc.GetInt64("addedAt"),
		SessionID:     doc.GetString("sessionId"),
		MatchedAt:     doc.GetTime("matchedAt"),
		VentText:      doc.GetString("ventText"),
		Plan:          doc.GetString("plan"),
		PreviewText:   doc.GetString("previewText"),
		RoomID:        doc.GetString("roomId"),
		RoomStatus:    doc.GetString("roomStatus"),
		ListenerCount: doc.GetInt("listenerCount"),
		MaxListeners:  doc.GetInt("maxListeners"),
	}
}
