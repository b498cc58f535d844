package rtc

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tanushsahu-fisrt/ventApp/models"
)

// Factory builds a fresh engine instance. It returns an error when the
// voice SDK is unavailable on the running platform.
type Factory func() (Engine, error)

// Registry owns the process-wide engine instance. The underlying SDK
// permits one live engine per process, so the instance is shared and
// reference-counted: it is destroyed only after the last holder releases
// it, and only after a short grace delay that absorbs rapid
// release/re-acquire cycles without a full teardown and reinit.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	grace   time.Duration

	engine       Engine
	refs         int
	destroyTimer *time.Timer
}

func NewRegistry(factory Factory, grace time.Duration) *Registry {
	return &Registry{factory: factory, grace: grace}
}

// Acquire returns a handle on the shared engine, creating it on first use.
// A pending grace-delay destroy is cancelled.
func (r *Registry) Acquire() (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyTimer != nil {
		r.destroyTimer.Stop()
		r.destroyTimer = nil
	}

	if r.engine == nil {
		engine, err := r.factory()
		if err != nil {
			return nil, models.ErrRtcUnavailable
		}
		r.engine = engine
	}

	r.refs++
	return &Handle{registry: r, engine: r.engine}, nil
}

// Refs reports the current holder count.
func (r *Registry) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}

func (r *Registry) release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs > 0 {
		r.refs--
	}
	if r.refs > 0 || r.engine == nil {
		return
	}

	if r.destroyTimer != nil {
		r.destroyTimer.Stop()
	}
	r.destroyTimer = time.AfterFunc(r.grace, r.destroyIfIdle)
}

func (r *Registry) destroyIfIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.destroyTimer = nil
	if r.refs > 0 || r.engine == nil {
		return
	}

	if err := r.engine.Close(); err != nil {
		log.Printf("Voice engine close failed: %v", err)
	}
	r.engine = nil
}

// Handle is one holder's reference to the shared engine. Release is
// idempotent.
type Handle struct {
	registry *Registry
	engine   Engine
	released atomic.Bool
}

func (h *Handle) Engine() Engine { return h.engine }

func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.registry.release()
	}
}
