package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeBrowser struct {
	id         int
	dead       atomic.Bool
	closed     atomic.Int32
	surfaceErr error
	pingErr    error
	closeErr   error
}

func (b *fakeBrowser) newSurface(ctx context.Context) (surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.surfaceErr != nil {
		return nil, b.surfaceErr
	}
	return &fakeSurface{}, nil
}

func (b *fakeBrowser) ping(context.Context, time.Duration) error { return b.pingErr }
func (b *fakeBrowser) alive() bool                               { return !b.dead.Load() && b.closed.Load() == 0 }
func (b *fakeBrowser) pid() int                                  { return 1000 + b.id }

func (b *fakeBrowser) close() error {
	b.closed.Add(1)
	return b.closeErr
}

type fakeSurface struct {
	closed atomic.Int32
}

func (s *fakeSurface) page() *rod.Page { return nil }
func (s *fakeSurface) close() error {
	s.closed.Add(1)
	return nil
}

// fakeLauncher records launches and hands out fakeBrowsers.
type fakeLauncher struct {
	mu       sync.Mutex
	browsers []*fakeBrowser
	delay    time.Duration
	err      error
	prepare  func(*fakeBrowser)
}

func (l *fakeLauncher) launch(ctx context.Context, _ Config) (browser, error) {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := &fakeBrowser{id: len(l.browsers) + 1}
	if l.prepare != nil {
		l.prepare(b)
	}
	l.browsers = append(l.browsers, b)
	return b, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.browsers)
}

func (l *fakeLauncher) browser(i int) *fakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.browsers[i]
}

func newTestEngine(l *fakeLauncher, maxContexts int) *Engine {
	return newEngine(Config{MaxContexts: maxContexts}, l.launch)
}

// ---------------------------------------------------------------------------
// TestNew_Defaults
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	e := New(Config{})
	defer e.Close()

	if e.MaxContexts() != DefaultMaxContexts {
		t.Errorf("MaxContexts() = %d, want %d", e.MaxContexts(), DefaultMaxContexts)
	}
	if e.cfg.LaunchTimeout != DefaultLaunchTimeout {
		t.Errorf("LaunchTimeout = %v, want %v", e.cfg.LaunchTimeout, DefaultLaunchTimeout)
	}
	if e.cfg.PingTimeout != DefaultPingTimeout {
		t.Errorf("PingTimeout = %v, want %v", e.cfg.PingTimeout, DefaultPingTimeout)
	}
	if e.Launches() != 0 {
		t.Errorf("Launches() = %d, want 0 before first Acquire", e.Launches())
	}
}

// ---------------------------------------------------------------------------
// TestAcquire
// ---------------------------------------------------------------------------

func TestAcquire_ReusesHandle(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 2)
	defer e.Close()

	h1, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	h2, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}

	if h1 != h2 {
		t.Error("expected the same handle on second Acquire")
	}
	if h1.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", h1.Generation())
	}
	if got := l.count(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
}

// Notes:
//   - callers racing on a cold engine must observe a single launch
func TestAcquire_ConcurrentSingleLaunch(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{delay: 20 * time.Millisecond}
	e := newTestEngine(l, 4)
	defer e.Close()

	const callers = 16
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := e.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire() unexpected error: %v", err)
				return
			}
			handles[i] = h
		}()
	}
	wg.Wait()

	if got := l.count(); got != 1 {
		t.Fatalf("launches = %d, want 1", got)
	}
	for i, h := range handles {
		if h != handles[0] {
			t.Errorf("handle %d differs from handle 0", i)
		}
	}
}

func TestAcquire_RelaunchAfterDeath(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 2)
	defer e.Close()

	h1, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	l.browser(0).dead.Store(true)

	h2, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}

	if h1 == h2 {
		t.Fatal("expected a new handle after the process died")
	}
	if h2.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", h2.Generation())
	}
	if e.Launches() != 2 {
		t.Errorf("Launches() = %d, want 2", e.Launches())
	}
}

func TestAcquire_RelaunchAfterInvalidate(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 2)

	h1, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	e.Invalidate(h1)
	e.Invalidate(h1)

	h2, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected a new handle after Invalidate")
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if got := l.browser(0).closed.Load(); got != 1 {
		t.Errorf("first browser closed %d times, want 1", got)
	}
	if got := l.browser(1).closed.Load(); got != 1 {
		t.Errorf("second browser closed %d times, want 1", got)
	}
}

func TestAcquire_LaunchError(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{err: errors.New("no chrome")}
	e := newTestEngine(l, 1)
	defer e.Close()

	_, err := e.Acquire(context.Background())
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("Acquire() error = %v, want ErrLaunch", err)
	}
	if e.Launches() != 0 {
		t.Errorf("Launches() = %d, want 0", e.Launches())
	}
}

func TestAcquire_CancelledContext(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 1)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}
	if l.count() != 0 {
		t.Error("expected no launch with a cancelled context")
	}
}

// Notes:
//   - the launch deadline is an engine failure, not the caller's deadline
func TestAcquire_LaunchTimeout(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{delay: time.Second}
	e := newEngine(Config{MaxContexts: 1, LaunchTimeout: 20 * time.Millisecond}, l.launch)
	defer e.Close()

	_, err := e.Acquire(context.Background())
	if !errors.Is(err, ErrLaunch) {
		t.Fatalf("Acquire() error = %v, want ErrLaunch", err)
	}
}

// ---------------------------------------------------------------------------
// TestNewContext
// ---------------------------------------------------------------------------

func TestNewContext_CloseReleasesSlot(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 1)
	defer e.Close()

	h, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}

	rc, err := e.NewContext(context.Background(), h)
	if err != nil {
		t.Fatalf("NewContext() unexpected error: %v", err)
	}
	if e.Open() != 1 {
		t.Errorf("Open() = %d, want 1", e.Open())
	}
	if rc.Handle() != h {
		t.Error("Handle() should return the owning handle")
	}

	if err := rc.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("second Close() unexpected error: %v", err)
	}
	if e.Open() != 0 {
		t.Errorf("Open() = %d after Close, want 0", e.Open())
	}
	if got := rc.surface.(*fakeSurface).closed.Load(); got != 1 {
		t.Errorf("surface closed %d times, want 1", got)
	}

	// The slot is free again.
	rc2, err := e.NewContext(context.Background(), h)
	if err != nil {
		t.Fatalf("NewContext() after Close unexpected error: %v", err)
	}
	_ = rc2.Close()
}

// Notes:
//   - requests beyond the ceiling wait, they are not rejected
//   - a waiter gives up when its own context ends
func TestNewContext_Ceiling(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 2)
	defer e.Close()

	h, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}

	a, err := e.NewContext(context.Background(), h)
	if err != nil {
		t.Fatalf("NewContext() unexpected error: %v", err)
	}
	b, err := e.NewContext(context.Background(), h)
	if err != nil {
		t.Fatalf("NewContext() unexpected error: %v", err)
	}

	t.Run("waiter times out", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := e.NewContext(ctx, h)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("NewContext() error = %v, want context.DeadlineExceeded", err)
		}
	})

	t.Run("waiter proceeds after release", func(t *testing.T) {
		got := make(chan *Context, 1)
		go func() {
			rc, err := e.NewContext(context.Background(), h)
			if err != nil {
				t.Errorf("NewContext() unexpected error: %v", err)
				close(got)
				return
			}
			got <- rc
		}()

		select {
		case <-got:
			t.Fatal("NewContext() should block while at the ceiling")
		case <-time.After(20 * time.Millisecond):
		}

		_ = a.Close()

		select {
		case rc := <-got:
			if rc != nil {
				_ = rc.Close()
			}
		case <-time.After(time.Second):
			t.Fatal("NewContext() did not proceed after a slot was released")
		}
	})

	_ = b.Close()
	if e.Open() != 0 {
		t.Errorf("Open() = %d, want 0", e.Open())
	}
}

func TestNewContext_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dead    bool
		wantErr error
	}{
		{name: "browser alive", dead: false, wantErr: ErrContextCreate},
		{name: "browser dead", dead: true, wantErr: ErrCrashed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := &fakeLauncher{prepare: func(b *fakeBrowser) {
				b.surfaceErr = errors.New("target closed")
			}}
			e := newTestEngine(l, 1)
			defer e.Close()

			h, err := e.Acquire(context.Background())
			if err != nil {
				t.Fatalf("Acquire() unexpected error: %v", err)
			}
			l.browser(0).dead.Store(tt.dead)

			_, err = e.NewContext(context.Background(), h)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewContext() error = %v, want %v", err, tt.wantErr)
			}
			if e.Open() != 0 {
				t.Errorf("Open() = %d, want 0", e.Open())
			}
			if got := e.Healthy(context.Background(), h); got == tt.dead {
				t.Errorf("Healthy() = %v, want %v", got, !tt.dead)
			}
		})
	}
}

func TestNewContext_InvalidatedHandle(t *testing.T) {
	t.Parallel()

	l := &fakeLauncher{}
	e := newTestEngine(l, 1)
	defer e.Close()

	h, err := e.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() unexpected error: %v", err)
	}
	e.Invalidate(h)

	_, err = e.NewContext(context.Background(), h)
	if !errors.Is(err, ErrCrashed) {
		t.Fatalf("NewContext() error = %v, want ErrCrashed", err)
	}
}

// ---------------------------------------------------------------------------
// TestHealthy
// ---------------------------------------------------------------------------

func TestHealthy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pingErr error
		dead    bool
		want    bool
	}{
		{name: "alive and answering", want: true},
		{name: "ping fails", pingErr: errors.New("timeout"), want: false},
		{name: "process gone", dead: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := &fakeLauncher{prepare: func(b *fakeBrowser) { b.pingErr = tt.pingErr }}
			e := newTestEngine(l, 1)
			defer e.Close()

			h, err := e.Acquire(context.Background())
			if err != nil {
				t.Fatalf("Acquire() unexpected error: %v", err)
			}
			l.browser(0).dead.Store(tt.dead)

			if got := e.Healthy(context.Background(), h); got != tt.want {
				t.Errorf("Healthy() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nil handle", func(t *testing.T) {
		t.Parallel()

		e := newTestEngine(&fakeLauncher{}, 1)
		if e.Healthy(context.Background(), nil) {
			t.Error("Healthy(nil) should be false")
		}
	})
}

// ---------------------------------------------------------------------------
// TestClose
// ---------------------------------------------------------------------------

func TestClose(t *testing.T) {
	t.Parallel()

	t.Run("idempotent and rejects Acquire", func(t *testing.T) {
		t.Parallel()

		l := &fakeLauncher{}
		e := newTestEngine(l, 1)
		if _, err := e.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() unexpected error: %v", err)
		}

		if err := e.Close(); err != nil {
			t.Fatalf("Close() unexpected error: %v", err)
		}
		if err := e.Close(); err != nil {
			t.Fatalf("second Close() unexpected error: %v", err)
		}
		if got := l.browser(0).closed.Load(); got != 1 {
			t.Errorf("browser closed %d times, want 1", got)
		}

		_, err := e.Acquire(context.Background())
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Acquire() after Close error = %v, want ErrClosed", err)
		}
	})

	t.Run("never launched", func(t *testing.T) {
		t.Parallel()

		e := newTestEngine(&fakeLauncher{}, 1)
		if err := e.Close(); err != nil {
			t.Fatalf("Close() unexpected error: %v", err)
		}
	})

	t.Run("reports reap errors", func(t *testing.T) {
		t.Parallel()

		closeErr := errors.New("kill failed")
		l := &fakeLauncher{prepare: func(b *fakeBrowser) { b.closeErr = closeErr }}
		e := newTestEngine(l, 1)
		if _, err := e.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() unexpected error: %v", err)
		}

		if err := e.Close(); !errors.Is(err, closeErr) {
			t.Errorf("Close() error = %v, want %v", err, closeErr)
		}
	})
}
