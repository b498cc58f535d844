package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/models"
	"github.com/tanushsahu-fisrt/ventApp/rtc"
	"github.com/tanushsahu-fisrt/ventApp/store"
	"github.com/tanushsahu-fisrt/ventApp/utils"
)

// SessionService owns the session collection and the live session
// lifecycle: the transactional claim that creates a session from two
// waiting queue entries, the idempotent finalization that ends it, and the
// RTC join/timer plumbing in between.
type SessionService struct {
	Store    store.Store
	Notifier *Notifier
	Tokens   *rtc.TokenClient
	Registry *rtc.Registry
	cfg      *config.Config

	// OnSessionEnded is an optional hook for metrics; called once per
	// finalized session.
	OnSessionEnded func(endType string, durationSeconds int)
}

func NewSessionService(st store.Store, notifier *Notifier, tokens *rtc.TokenClient, registry *rtc.Registry, cfg *config.Config) *SessionService {
	return &SessionService{
		Store:    st,
		Notifier: notifier,
		Tokens:   tokens,
		Registry: registry,
		cfg:      cfg,
	}
}

// ClaimParams identifies the two waiting entries a claim tries to pair.
// InitiatorID marks which user drove the claim; they become the channel
// host.
type ClaimParams struct {
	VenterEntryID   string
	ListenerEntryID string
	InitiatorID     string
}

// CreateSession atomically claims both queue entries and creates the
// session record. Both entries are re-read inside the transaction and must
// still be waiting; any staleness aborts with ErrCandidateGone so the
// caller can pick another candidate. At most one of N concurrent claimants
// for the same pair can succeed.
func (s *SessionService) CreateSession(ctx context.Context, params ClaimParams) (*models.SessionDescriptor, error) {
	var desc *models.SessionDescriptor

	err := s.Store.RunInTransaction(ctx, func(tx store.Tx) error {
		venter, err := claimableEntry(ctx, tx, params.VenterEntryID)
		if err != nil {
			return err
		}
		listener, err := claimableEntry(ctx, tx, params.ListenerEntryID)
		if err != nil {
			return err
		}
		if venter.GetString("role") != models.RoleVenter || listener.GetString("role") != models.RoleListener {
			return models.ErrCandidateGone
		}

		plan := venter.GetString("plan")
		if _, ok := models.PlanByName(plan); !ok {
			plan = models.DefaultPlanName
		}

		channelName := utils.GenerateChannelName()
		now := time.Now()

		session, err := tx.Create(ctx, store.CollectionSessions, store.Fields{
			"venterId":           venter.GetString("userId"),
			"listenerId":         listener.GetString("userId"),
			"ventText":           venter.GetString("ventText"),
			"plan":               plan,
			"channelName":        channelName,
			"roomId":             venter.GetString("roomId"),
			"status":             models.SessionActive,
			"startTime":          now,
			"venterQueueDocId":   venter.ID(),
			"listenerQueueDocId": listener.ID(),
		})
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		matched := store.Fields{
			"status":    models.StatusMatched,
			"sessionId": session.ID(),
			"matchedAt": now,
		}
		if err := tx.Update(ctx, store.CollectionQueue, venter.ID(), matched); err != nil {
			return err
		}
		if err := tx.Update(ctx, store.CollectionQueue, listener.ID(), matched); err != nil {
			return err
		}

		desc = &models.SessionDescriptor{
			SessionID:   session.ID(),
			ChannelName: channelName,
			VenterID:    venter.GetString("userId"),
			ListenerID:  listener.GetString("userId"),
			VentText:    venter.GetString("ventText"),
			Plan:        plan,
			RoomID:      venter.GetString("roomId"),
			IsHost:      venter.GetString("userId") == params.InitiatorID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Session %s created on channel %s (plan %s)", desc.SessionID, desc.ChannelName, desc.Plan)
	s.Notifier.NotifyMatchFound(*desc)
	return desc, nil
}

func claimableEntry(ctx context.Context, tx store.Tx, entryID string) (store.Doc, error) {
	doc, err := tx.Get(ctx, store.CollectionQueue, entryID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrCandidateGone
		}
		return nil, err
	}
	if doc.GetString("status") != models.StatusWaiting {
		return nil, models.ErrCandidateGone
	}
	return doc, nil
}

// GetSession loads one session record.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	doc, err := s.Store.Get(ctx, store.CollectionSessions, sessionID)
	if err != nil {
		return nil, err
	}
	return docToSession(doc), nil
}

// EndSession finalizes a session exactly once. A missing or already-ended
// session is not an error: manual end, timer expiry and error teardown may
// all race here, and whoever loses must see success. The recorded duration
// is the elapsed wall time clamped to the plan allotment, whole seconds.
func (s *SessionService) EndSession(ctx context.Context, sessionID, endType string, elapsed time.Duration) (*models.Session, error) {
	var ended *models.Session

	err := s.Store.RunInTransaction(ctx, func(tx store.Tx) error {
		doc, err := tx.Get(ctx, store.CollectionSessions, sessionID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			return err
		}
		if doc.GetString("status") == models.SessionEnded {
			ended = docToSession(doc)
			return nil
		}

		duration := int(elapsed.Seconds())
		if plan, ok := models.PlanByName(doc.GetString("plan")); ok && duration > plan.DurationSeconds {
			duration = plan.DurationSeconds
		}
		if duration < 0 {
			duration = 0
		}

		now := time.Now()
		if err := tx.Update(ctx, store.CollectionSessions, sessionID, store.Fields{
			"status":          models.SessionEnded,
			"endType":         endType,
			"endTime":         now,
			"endedAt":         now,
			"durationSeconds": duration,
		}); err != nil {
			return err
		}

		for _, entryID := range []string{doc.GetString("venterQueueDocId"), doc.GetString("listenerQueueDocId")} {
			if entryID == "" {
				continue
			}
			if err := tx.Delete(ctx, store.CollectionQueue, entryID); err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
		}

		updated, err := tx.Get(ctx, store.CollectionSessions, sessionID)
		if err != nil {
			return err
		}
		ended = docToSession(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ended == nil {
		return nil, nil
	}

	if ended.EndType == endType {
		log.Printf("Session %s ended (%s) after %ds", sessionID, endType, ended.DurationSeconds)
		for _, userID := range []string{ended.VenterID, ended.ListenerID} {
			s.Notifier.NotifySessionEnded(userID, sessionID, endType, ended.DurationSeconds)
		}
		if s.OnSessionEnded != nil {
			s.OnSessionEnded(endType, ended.DurationSeconds)
		}
	}
	return ended, nil
}

// ActiveSession is one participant's live attachment to a session: the
// shared RTC engine handle, its event wiring and the countdown timer.
type ActiveSession struct {
	Descriptor models.SessionDescriptor

	svc    *SessionService
	handle *rtc.Handle
	timer  *SessionTimer
	ending atomic.Bool
}

// Begin joins the voice channel for one participant and starts the
// session countdown. The RTC join is bounded: each attempt gets its own
// timeout and failures back off before retrying; when every attempt fails
// the engine handle is released and a RtcConnectionError reports the
// attempt count.
func (s *SessionService) Begin(ctx context.Context, desc models.SessionDescriptor, userID string) (*ActiveSession, error) {
	plan, ok := models.PlanByName(desc.Plan)
	if !ok {
		return nil, &models.ValidationError{Field: "plan", Reason: "unknown plan"}
	}

	token, err := s.Tokens.Fetch(ctx, desc.ChannelName, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch rtc token: %w", err)
	}

	handle, err := s.Registry.Acquire()
	if err != nil {
		return nil, err
	}

	active := &ActiveSession{
		Descriptor: desc,
		svc:        s,
		handle:     handle,
	}

	engine := handle.Engine()
	engine.SetEvents(rtc.Events{
		OnUserLeft: func(uid string) {
			log.Printf("Peer %s left channel %s", uid, desc.ChannelName)
		},
		OnError: func(code int) {
			log.Printf("RTC error %d on channel %s", code, desc.ChannelName)
		},
		OnConnectionStateChanged: func(state rtc.ConnectionState) {
			log.Printf("Channel %s connection state: %s", desc.ChannelName, state)
			if state == rtc.StateFailed {
				active.end(context.Background(), models.EndTypeError)
			}
		},
	})

	if err := s.joinWithRetry(ctx, engine, desc.ChannelName, token); err != nil {
		handle.Release()
		return nil, err
	}

	active.timer = NewSessionTimer(time.Duration(plan.DurationSeconds)*time.Second, func() {
		active.end(context.Background(), models.EndTypeAuto)
	})
	active.timer.Start()

	return active, nil
}

func (s *SessionService) joinWithRetry(ctx context.Context, engine rtc.Engine, channel, token string) error {
	attempts := s.cfg.RtcJoinRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.RtcJoinTimeout)
		lastErr = engine.Join(attemptCtx, channel, token)
		cancel()
		if lastErr == nil {
			return nil
		}

		log.Printf("RTC join attempt %d/%d for %s failed: %v", attempt, attempts, channel, lastErr)
		if attempt < attempts {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return &models.RtcConnectionError{Channel: channel, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}
	return &models.RtcConnectionError{Channel: channel, Attempts: attempts, Err: lastErr}
}

// Elapsed reports how long the session has been running.
func (a *ActiveSession) Elapsed() time.Duration { return a.timer.Elapsed() }

// Remaining reports how much plan time is left.
func (a *ActiveSession) Remaining() time.Duration { return a.timer.Remaining() }

// Mute toggles the local audio track.
func (a *ActiveSession) Mute(muted bool) error { return a.handle.Engine().MuteLocal(muted) }

// SetSpeaker toggles the playback route.
func (a *ActiveSession) SetSpeaker(enabled bool) error { return a.handle.Engine().SetSpeaker(enabled) }

// End finishes the session manually. Safe to call more than once.
func (a *ActiveSession) End(ctx context.Context) error {
	return a.end(ctx, models.EndTypeManual)
}

// end tears down exactly once: leave the voice channel first so audio
// stops immediately, then finalize the record.
func (a *ActiveSession) end(ctx context.Context, endType string) error {
	if !a.ending.CompareAndSwap(false, true) {
		return nil
	}

	// A transport failure can end the session before the timer starts.
	var elapsed time.Duration
	if a.timer != nil {
		elapsed = a.timer.Elapsed()
		a.timer.Stop()
	}

	if err := a.handle.Engine().Leave(); err != nil {
		log.Printf("RTC leave for channel %s failed: %v", a.Descriptor.ChannelName, err)
	}
	a.handle.Release()

	if _, err := a.svc.EndSession(ctx, a.Descriptor.SessionID, endType, elapsed); err != nil {
		return fmt.Errorf("finalize session %s: %w", a.Descriptor.SessionID, err)
	}
	return nil
}

func docToSession(doc store.Doc) *models.Session {
	return &models.Session{
		ID:                 doc.ID(),
		VenterID:           doc.GetString("venterId"),
		ListenerID:         doc.GetString("listenerId"),
		VentText:           doc.GetString("ventText"),
		Plan:               doc.GetString("plan"),
		ChannelName:        doc.GetString("channelName"),
		RoomID:             doc.GetString("roomId"),
		Status:             doc.GetString("status"),
		StartTime:          doc.GetTime("startTime"),
		EndTime:            doc.GetTime("endTime"),
		DurationSeconds:    doc.GetInt("durationSeconds"),
		EndType:            doc.GetString("endType"),
		VenterQueueDocID:   doc.GetString("venterQueueDocId"),
		ListenerQueueDocID: doc.GetString("listenerQueueDocId"),
		EndedAt:            doc.GetTime("endedAt"),
	}
}
