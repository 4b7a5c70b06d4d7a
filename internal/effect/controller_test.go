package effect

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/glimmer/internal/zone"
)

var errUnknown = errors.New("unknown effect")

// fakeEffect is a scriptable Runnable.
type fakeEffect struct {
	key     string
	looped  bool
	invoke  func(ctx context.Context, z zone.Zone, step int) error
	starts  atomic.Int32
	stopped atomic.Int32
}

func (f *fakeEffect) FullName() string { return f.key }
func (f *fakeEffect) Looped() bool     { return f.looped }

func (f *fakeEffect) Invoke(ctx context.Context, z zone.Zone, step int) error {
	f.starts.Add(1)
	defer f.stopped.Add(1)
	if f.invoke != nil {
		return f.invoke(ctx, z, step)
	}
	if f.looped {
		<-ctx.Done()
	}
	return nil
}

// fakeCatalog resolves keys from a fixed map.
type fakeCatalog map[string]*fakeEffect

func (c fakeCatalog) Lookup(key string) (Runnable, error) {
	e, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknown, key)
	}
	return e, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStopWhileIdle(t *testing.T) {
	c := NewController(fakeCatalog{}, nil)
	c.Stop()
	c.Stop()
	if _, running := c.Running(); running {
		t.Error("Running() = true on a fresh controller")
	}
}

func TestRunUnknownEffect(t *testing.T) {
	c := NewController(fakeCatalog{}, nil)
	err := c.Run(context.Background(), "nope.effect", zone.NewBuffer(1, nil), 1)
	if !errors.Is(err, errUnknown) {
		t.Fatalf("Run() = %v, want unknown-effect error", err)
	}
	if _, running := c.Running(); running {
		t.Error("controller running after failed lookup")
	}
}

func TestRunSingleShot(t *testing.T) {
	e := &fakeEffect{key: "core.rainbow"}
	c := NewController(fakeCatalog{"core.rainbow": e}, nil)

	if err := c.Run(context.Background(), "core.rainbow", zone.NewBuffer(4, nil), 4); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// Single-shot effects complete synchronously; the controller stays idle.
	if _, running := c.Running(); running {
		t.Error("controller running after single-shot effect")
	}
	if e.starts.Load() != 1 {
		t.Errorf("starts = %d, want 1", e.starts.Load())
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v, want nil", c.Err())
	}
}

func TestRunSingleShotFault(t *testing.T) {
	wantErr := errors.New("render failed")
	e := &fakeEffect{
		key:    "core.rainbow",
		invoke: func(context.Context, zone.Zone, int) error { return wantErr },
	}
	c := NewController(fakeCatalog{"core.rainbow": e}, nil)

	err := c.Run(context.Background(), "core.rainbow", zone.NewBuffer(1, nil), 1)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() = %v, want %v", err, wantErr)
	}
	if !errors.Is(c.Err(), wantErr) {
		t.Errorf("Err() = %v, want %v", c.Err(), wantErr)
	}
	if _, running := c.Running(); running {
		t.Error("controller running after faulted single-shot")
	}
}

func TestRunLooped(t *testing.T) {
	e := &fakeEffect{key: "core.cycle", looped: true}
	c := NewController(fakeCatalog{"core.cycle": e}, nil)

	if err := c.Run(context.Background(), "core.cycle", zone.NewBuffer(4, nil), 4); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	info, running := c.Running()
	if !running {
		t.Fatal("Running() = false, want true")
	}
	if info.Key != "core.cycle" {
		t.Errorf("Running key = %q, want core.cycle", info.Key)
	}

	c.Stop()
	if _, running := c.Running(); running {
		t.Error("controller running after Stop")
	}
	if e.stopped.Load() != 1 {
		t.Errorf("worker exits = %d, want 1", e.stopped.Load())
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v after clean stop", c.Err())
	}
}

func TestRunReplacesRunningEffect(t *testing.T) {
	var maxConcurrent, current atomic.Int32
	track := func(ctx context.Context, _ zone.Zone, _ int) error {
		n := current.Add(1)
		if m := maxConcurrent.Load(); n > m {
			maxConcurrent.Store(n)
		}
		defer current.Add(-1)
		<-ctx.Done()
		return nil
	}

	a := &fakeEffect{key: "core.a", looped: true, invoke: track}
	b := &fakeEffect{key: "core.b", looped: true, invoke: track}
	c := NewController(fakeCatalog{"core.a": a, "core.b": b}, nil)

	z := zone.NewBuffer(4, nil)
	for i := 0; i < 10; i++ {
		key := "core.a"
		if i%2 == 1 {
			key = "core.b"
		}
		if err := c.Run(context.Background(), key, z, 4); err != nil {
			t.Fatalf("Run(%s) failed: %v", key, err)
		}
	}

	// The previous worker is always joined before a new one starts.
	if maxConcurrent.Load() != 1 {
		t.Errorf("max concurrent workers = %d, want 1", maxConcurrent.Load())
	}

	info, running := c.Running()
	if !running || info.Key != "core.b" {
		t.Errorf("Running() = %v %v, want core.b", info, running)
	}
	c.Stop()
}

func TestRunUnknownKeyStopsRunningEffect(t *testing.T) {
	e := &fakeEffect{key: "core.cycle", looped: true}
	c := NewController(fakeCatalog{"core.cycle": e}, nil)

	if err := c.Run(context.Background(), "core.cycle", zone.NewBuffer(1, nil), 1); err != nil {
		t.Fatal(err)
	}

	// The implicit stop happens before the new key is resolved, so a bad
	// key still halts the running effect.
	err := c.Run(context.Background(), "core.nope", zone.NewBuffer(1, nil), 1)
	if !errors.Is(err, errUnknown) {
		t.Fatalf("Run() = %v, want unknown-effect error", err)
	}
	if _, running := c.Running(); running {
		t.Error("controller still running after replacement with unknown key")
	}
	if e.stopped.Load() != 1 {
		t.Errorf("worker exits = %d, want 1", e.stopped.Load())
	}
}

func TestCancelOrdering(t *testing.T) {
	// The old worker must observe cancellation before it returns; Run joins
	// it before starting the next effect.
	sawCancel := false
	a := &fakeEffect{key: "core.a", looped: true, invoke: func(ctx context.Context, _ zone.Zone, _ int) error {
		<-ctx.Done()
		sawCancel = true
		return nil
	}}
	b := &fakeEffect{key: "core.b", looped: true}
	c := NewController(fakeCatalog{"core.a": a, "core.b": b}, nil)

	z := zone.NewBuffer(1, nil)
	if err := c.Run(context.Background(), "core.a", z, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(context.Background(), "core.b", z, 1); err != nil {
		t.Fatal(err)
	}

	if !sawCancel {
		t.Error("second Run returned before the first worker observed cancellation")
	}
	c.Stop()
}

func TestWorkerFaultRecoversToIdle(t *testing.T) {
	wantErr := errors.New("device disappeared")
	e := &fakeEffect{key: "core.cycle", looped: true, invoke: func(context.Context, zone.Zone, int) error {
		return wantErr
	}}
	ok := &fakeEffect{key: "core.ok"}
	c := NewController(fakeCatalog{"core.cycle": e, "core.ok": ok}, nil)

	if err := c.Run(context.Background(), "core.cycle", zone.NewBuffer(1, nil), 1); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	waitFor(t, func() bool {
		_, running := c.Running()
		return !running
	})
	if !errors.Is(c.Err(), wantErr) {
		t.Errorf("Err() = %v, want %v", c.Err(), wantErr)
	}

	// The controller accepts new effects after a fault.
	if err := c.Run(context.Background(), "core.ok", zone.NewBuffer(1, nil), 1); err != nil {
		t.Fatalf("Run() after fault failed: %v", err)
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v after successful run, want nil", c.Err())
	}
}

func TestPanicContainment(t *testing.T) {
	e := &fakeEffect{key: "core.bad", invoke: func(context.Context, zone.Zone, int) error {
		panic("plugin bug")
	}}
	c := NewController(fakeCatalog{"core.bad": e}, nil)

	err := c.Run(context.Background(), "core.bad", zone.NewBuffer(1, nil), 1)
	if err == nil {
		t.Fatal("Run() succeeded, want panic surfaced as error")
	}
	if _, running := c.Running(); running {
		t.Error("controller running after panicked effect")
	}
}

func TestStopClearsCancelledWorkerError(t *testing.T) {
	// An error returned because the context was cancelled is a normal stop,
	// not a fault.
	e := &fakeEffect{key: "core.cycle", looped: true, invoke: func(ctx context.Context, _ zone.Zone, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := NewController(fakeCatalog{"core.cycle": e}, nil)

	if err := c.Run(context.Background(), "core.cycle", zone.NewBuffer(1, nil), 1); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v after cooperative stop, want nil", err)
	}
}
