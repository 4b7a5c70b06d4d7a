// Package effect owns the effect execution lifecycle: at most one effect
// runs against a zone at any time, a running effect is stopped
// cooperatively and deterministically before another starts, and single-shot
// and looped effects share one execution contract.
package effect

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/glimmer/internal/zone"
)

// Runnable is a catalog-resolved effect.
type Runnable interface {
	// FullName returns the effect key, "plugin.function".
	FullName() string
	// Looped reports whether the effect runs until cancelled.
	Looped() bool
	// Invoke executes the effect against the zone. Looped effects must
	// poll ctx at iteration boundaries, never mid-render.
	Invoke(ctx context.Context, z zone.Zone, step int) error
}

// Catalog resolves effect keys to runnables.
type Catalog interface {
	Lookup(key string) (Runnable, error)
}

// RunInfo identifies an active effect run.
type RunInfo struct {
	Key string
	ID  uuid.UUID
}

// Controller is the effect lifecycle state machine. It is either idle or
// running exactly one background worker for a looped effect; the
// idle/running discipline is what enforces the zone's single-writer
// invariant.
type Controller struct {
	mu      sync.Mutex
	catalog Catalog
	log     *zap.Logger

	running *worker // nil when idle
	lastErr error   // most recent effect runtime fault
}

// worker is the transient state of one looped effect run. The err field is
// written only by the worker goroutine and read only after done is closed.
type worker struct {
	key    string
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewController creates a controller resolving effects from catalog.
// Logger may be nil.
func NewController(catalog Catalog, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		catalog: catalog,
		log:     log,
	}
}

// Run starts the effect addressed by key against z. If an effect is
// already running it is stopped first - cancellation signalled, worker
// joined - before the new request is evaluated, so at most one worker is
// ever alive.
//
// An unknown key returns ErrUnknownEffect from the catalog and leaves the
// controller idle. A non-looped effect executes synchronously to completion
// on the caller's goroutine and the controller stays idle; its fault, if
// any, is both returned and recorded. A looped effect spawns one worker and
// the controller is running until Stop, a new Run, or a worker fault.
func (c *Controller) Run(ctx context.Context, key string, z zone.Zone, step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Implicit stop comes before evaluating the new request.
	c.stopLocked()

	r, err := c.catalog.Lookup(key)
	if err != nil {
		return err
	}

	c.lastErr = nil

	if !r.Looped() {
		c.log.Debug("running single-shot effect", zap.String("effect", key))
		if err := invoke(ctx, r, z, step); err != nil {
			c.lastErr = err
			c.log.Error("effect failed",
				zap.String("effect", key),
				zap.Error(err))
			return err
		}
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w := &worker{
		key:    key,
		id:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.running = w

	c.log.Info("effect started",
		zap.String("effect", key),
		zap.String("run", w.id.String()),
		zap.Int("step", step))

	go func() {
		defer close(w.done)
		if err := invoke(runCtx, r, z, step); err != nil && runCtx.Err() == nil {
			w.err = err
		}
	}()

	return nil
}

// Stop cancels the running effect and blocks until its worker has exited.
// Stop while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked signals cancellation, joins the worker, and clears the running
// state. The worker goroutine never takes c.mu, so holding it across the
// join cannot deadlock. Callers must hold c.mu.
func (c *Controller) stopLocked() {
	w := c.running
	if w == nil {
		return
	}

	w.cancel() // set the signal...
	<-w.done   // ...then wait for the worker to observe it

	c.running = nil
	if w.err != nil {
		c.lastErr = w.err
		c.log.Error("effect failed",
			zap.String("effect", w.key),
			zap.String("run", w.id.String()),
			zap.Error(w.err))
		return
	}
	c.log.Info("effect stopped",
		zap.String("effect", w.key),
		zap.String("run", w.id.String()))
}

// reapLocked collects a worker that terminated on its own (a runtime
// fault), returning the controller to idle. Callers must hold c.mu.
func (c *Controller) reapLocked() {
	w := c.running
	if w == nil {
		return
	}

	select {
	case <-w.done:
		w.cancel()
		c.running = nil
		if w.err != nil {
			c.lastErr = w.err
			c.log.Error("effect failed",
				zap.String("effect", w.key),
				zap.String("run", w.id.String()),
				zap.Error(w.err))
		}
	default:
	}
}

// Running returns the active effect run, if any.
func (c *Controller) Running() (RunInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if c.running == nil {
		return RunInfo{}, false
	}
	return RunInfo{Key: c.running.key, ID: c.running.id}, true
}

// Err returns the most recent effect runtime fault. A worker fault
// terminates only that effect; the controller recovers to idle and the
// fault is surfaced here rather than crashing the process.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	return c.lastErr
}

// invoke executes a runnable with panic containment, so a misbehaving
// plugin cannot take down the process.
func invoke(ctx context.Context, r Runnable, z zone.Zone, step int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("effect %s panicked: %v", r.FullName(), rec)
		}
	}()
	return r.Invoke(ctx, z, step)
}
