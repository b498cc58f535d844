package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/utils"
)

var (
	// ErrMatchTimeout reports that no partner appeared within the match
	// window.
	ErrMatchTimeout = errors.New("no match found, please try again")

	// ErrClaimContention reports that every candidate was claimed by
	// someone else before we could.
	ErrClaimContention = errors.New("matching is busy, please try again")
)

// MatchResult is delivered exactly once per search: either a session
// descriptor or the reason the search ended without one.
type MatchResult struct {
	Descriptor *models.SessionDescriptor
	Err        error
}

// matchQueue is the queue surface the matching engine drives.
type matchQueue interface {
	Enqueue(ctx context.Context, userID, role, ventText, plan string) (*models.QueueEntry, error)
	Dequeue(ctx context.Context, entryID string) error
	SubscribeWaiting(ctx context.Context, role string, fn func([]models.QueueEntry)) (func(), error)
	Stats(ctx context.Context) *models.QueueStats
	Ping(ctx context.Context) error
}

// sessionCreator performs the transactional claim.
type sessionCreator interface {
	CreateSession(ctx context.Context, params ClaimParams) (*models.SessionDescriptor, error)
}

// MatchingService runs the automatic matching engine: it enqueues the
// caller, watches the opposite role's waiting list and claims the oldest
// candidate through the transactional session create. One search per user
// at a time.
type MatchingService struct {
	queue    matchQueue
	sessions sessionCreator
	Breaker  *utils.CircuitBreaker
	cfg      *config.Config

	mu       sync.Mutex
	searches map[string]*search

	// OnMatchEvent is an optional metrics hook, keyed by operation and
	// outcome.
	OnMatchEvent func(op, status string)
}

type search struct {
	userID      string
	role        string
	entryID     string
	unsubscribe func()
	timeout     *time.Timer
	onResult    func(MatchResult)

	// ready closes once StartMatching has assigned entryID, unsubscribe
	// and timeout; snapshot delivery and teardown wait on it so neither
	// can observe a half-built search.
	ready chan struct{}

	claiming atomic.Bool
	done     atomic.Bool
	retries  int
}

func NewMatchingService(queue matchQueue, sessions sessionCreator, cfg *config.Config) *MatchingService {
	return &MatchingService{
		queue:    queue,
		sessions: sessions,
		Breaker:  utils.NewCircuitBreaker("matching-store"),
		cfg:      cfg,
		searches: make(map[string]*search),
	}
}

// StartMatching begins a search for the user. Venters bring their vent
// text and plan; listeners bring nothing. onResult fires exactly once,
// from a background goroutine, when the search resolves either way.
func (m *MatchingService) StartMatching(ctx context.Context, userID, role, ventText, plan string, onResult func(MatchResult)) error {
	if err := m.Breaker.Execute(ctx, func(ctx context.Context) error {
		return m.queue.Ping(ctx)
	}); err != nil {
		m.trackEvent("start", "connectivity_error")
		return fmt.Errorf("%w: %v", models.ErrConnectivity, err)
	}

	m.mu.Lock()
	if _, exists := m.searches[userID]; exists {
		m.mu.Unlock()
		return models.ErrAlreadyMatching
	}
	// Reserve the slot before the enqueue so a double-tap cannot race in.
	sr := &search{userID: userID, role: role, onResult: onResult, ready: make(chan struct{})}
	m.searches[userID] = sr
	m.mu.Unlock()
	defer close(sr.ready)

	entry, err := m.queue.Enqueue(ctx, userID, role, ventText, plan)
	if err != nil {
		m.remove(userID)
		m.trackEvent("start", "invalid")
		return err
	}
	sr.entryID = entry.ID

	opposite := models.RoleListener
	if role == models.RoleListener {
		opposite = models.RoleVenter
	}

	unsubscribe, err := m.queue.SubscribeWaiting(ctx, opposite, func(candidates []models.QueueEntry) {
		<-sr.ready
		m.tryClaim(ctx, sr, candidates)
	})
	if err != nil {
		m.remove(userID)
		if derr := m.queue.Dequeue(ctx, entry.ID); derr != nil {
			log.Printf("Dequeue after failed subscribe: %v", derr)
		}
		return err
	}
	sr.unsubscribe = unsubscribe

	sr.timeout = time.AfterFunc(m.cfg.MatchTimeout, func() {
		m.trackEvent("match", "timeout")
		m.finish(context.Background(), sr, MatchResult{Err: ErrMatchTimeout}, true)
	})

	log.Printf("User %s matching as %s (entry %s)", userID, role, entry.ID)
	m.trackEvent("start", "ok")
	return nil
}

// tryClaim races to claim the oldest fresh candidate. Only one claim is in
// flight per search; stale candidates cost a retry and exhausting the
// retry budget fails the search.
func (m *MatchingService) tryClaim(ctx context.Context, sr *search, candidates []models.QueueEntry) {
	if sr.done.Load() {
		return
	}
	if !sr.claiming.CompareAndSwap(false, true) {
		return
	}
	defer sr.claiming.Store(false)

	for _, candidate := range candidates {
		if sr.done.Load() {
			return
		}
		if candidate.UserID == sr.userID {
			continue
		}

		params := ClaimParams{InitiatorID: sr.userID}
		if sr.role == models.RoleVenter {
			params.VenterEntryID = sr.entryID
			params.ListenerEntryID = candidate.ID
		} else {
			params.VenterEntryID = candidate.ID
			params.ListenerEntryID = sr.entryID
		}

		desc, err := m.sessions.CreateSession(ctx, params)
		if err == nil {
			m.trackEvent("match", "claimed")
			m.finish(ctx, sr, MatchResult{Descriptor: desc}, false)
			return
		}
		if errors.Is(err, models.ErrCandidateGone) {
			sr.retries++
			log.Printf("Candidate %s gone for user %s (attempt %d/%d)", candidate.ID, sr.userID, sr.retries, m.cfg.MaxClaimRetries)
			if sr.retries >= m.cfg.MaxClaimRetries {
				m.trackEvent("match", "contention")
				m.finish(ctx, sr, MatchResult{Err: ErrClaimContention}, true)
				return
			}
			continue
		}

		m.trackEvent("match", "error")
		m.finish(ctx, sr, MatchResult{Err: err}, true)
		return
	}
}

// StopMatching cancels the user's search and removes their queue entry.
// Calling it with no search in flight is a no-op.
func (m *MatchingService) StopMatching(ctx context.Context, userID string) error {
	m.mu.Lock()
	sr, ok := m.searches[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	m.trackEvent("stop", "ok")
	m.teardown(ctx, sr, true)
	return nil
}

// Searching reports whether the user has an active search.
func (m *MatchingService) Searching(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.searches[userID]
	return ok
}

// EstimateWait turns queue stats into a coarse wait-time band for the
// given role.
func (m *MatchingService) EstimateWait(ctx context.Context, role string) string {
	stats := m.queue.Stats(ctx)
	if stats.Degraded {
		return "unknown"
	}

	opposite := stats.ListenersWaiting
	if role == models.RoleListener {
		opposite = stats.VentersWaiting
	}

	switch {
	case opposite >= 3:
		return "< 30 seconds"
	case opposite >= 1:
		return "< 1 minute"
	case stats.ActiveSessions > 0:
		return "2-5 minutes"
	default:
		return "5+ minutes"
	}
}

// finish resolves a search exactly once. A failed search also removes the
// user's queue entry; a successful one leaves it matched for the session
// to clean up.
func (m *MatchingService) finish(ctx context.Context, sr *search, result MatchResult, dequeue bool) {
	if !sr.done.CompareAndSwap(false, true) {
		return
	}

	m.stopWatching(sr)
	if dequeue {
		if err := m.queue.Dequeue(ctx, sr.entryID); err != nil {
			log.Printf("Dequeue on search finish: %v", err)
		}
	}
	m.remove(sr.userID)

	if sr.onResult != nil {
		go sr.onResult(result)
	}
}

// teardown cancels silently, without delivering a result.
func (m *MatchingService) teardown(ctx context.Context, sr *search, dequeue bool) {
	if !sr.done.CompareAndSwap(false, true) {
		return
	}

	m.stopWatching(sr)
	if dequeue {
		if err := m.queue.Dequeue(ctx, sr.entryID); err != nil {
			log.Printf("Dequeue on search stop: %v", err)
		}
	}
	m.remove(sr.userID)
}

func (m *MatchingService) stopWatching(sr *search) {
	<-sr.ready
	if sr.timeout != nil {
		sr.timeout.Stop()
	}
	if sr.unsubscribe != nil {
		sr.unsubscribe()
	}
}

func (m *MatchingService) remove(userID string) {
	m.mu.Lock()
	delete(m.searches, userID)
	m.mu.Unlock()
}

func (m *MatchingService) trackEvent(op, status string) {
	if m.OnMatchEvent != nil {
		m.OnMatchEvent(op, status)
	}
}
