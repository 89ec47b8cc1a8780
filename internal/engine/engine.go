package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"golang.org/x/sync/semaphore"
)

// Sentinel errors for engine operations.
var (
	ErrLaunch        = errors.New("failed to launch browser")
	ErrCrashed       = errors.New("browser process crashed")
	ErrContextCreate = errors.New("failed to create render context")
	ErrClosed        = errors.New("engine closed")
)

// Defaults applied by New for zero Config fields.
const (
	DefaultMaxContexts   = 4
	DefaultLaunchTimeout = 30 * time.Second
	DefaultPingTimeout   = 2 * time.Second
)

// Config configures the shared browser.
type Config struct {
	BrowserBin    string        // Empty = ROD_BROWSER_BIN, then auto-detect/download
	NoSandbox     bool          // Required in most containers
	MaxContexts   int           // Open render contexts ceiling
	LaunchTimeout time.Duration // Browser start deadline
	PingTimeout   time.Duration // Health probe deadline
	Flags         []string      // Extra Chrome switches, "name" or "name=value"
	Logger        *log.Logger
}

// browser is a running browser process as seen by the engine.
type browser interface {
	newSurface(ctx context.Context) (surface, error)
	ping(ctx context.Context, timeout time.Duration) error
	alive() bool
	pid() int
	close() error
}

// surface is an isolated rendering session inside a browser.
type surface interface {
	page() *rod.Page
	close() error
}

type launchFunc func(ctx context.Context, cfg Config) (browser, error)

// Handle refers to one launched browser process.
type Handle struct {
	b          browser
	generation int64
	invalid    atomic.Bool
}

// PID returns the browser process id, or 0 when unknown.
func (h *Handle) PID() int { return h.b.pid() }

// Generation numbers launches from 1; a relaunch yields a new generation.
func (h *Handle) Generation() int64 { return h.generation }

// Engine manages the shared browser and the render-context ceiling.
type Engine struct {
	cfg    Config
	launch launchFunc
	logger *log.Logger
	sem    *semaphore.Weighted

	mu       sync.Mutex
	current  *Handle
	closed   bool
	reaping  sync.WaitGroup
	reapErrs []error

	launches atomic.Int64
	open     atomic.Int64
}

// New creates an Engine. No process is started until Acquire.
func New(cfg Config) *Engine {
	return newEngine(cfg, launchRod)
}

func newEngine(cfg Config, launch launchFunc) *Engine {
	if cfg.MaxContexts <= 0 {
		cfg.MaxContexts = DefaultMaxContexts
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = DefaultLaunchTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPingTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		cfg:    cfg,
		launch: launch,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(cfg.MaxContexts)),
	}
}

// Acquire returns the shared browser handle, launching it if needed.
// A handle that was invalidated or whose process exited is replaced.
// Concurrent callers share a single launch.
func (e *Engine) Acquire(ctx context.Context) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	if h := e.current; h != nil {
		if !h.invalid.Load() && h.b.alive() {
			return h, nil
		}
		e.logger.Warn("browser gone, relaunching", "pid", h.PID(), "generation", h.generation)
		e.discardLocked(h)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launchCtx, cancel := context.WithTimeout(ctx, e.cfg.LaunchTimeout)
	defer cancel()

	start := time.Now()
	b, err := e.launch(launchCtx, e.cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	h := &Handle{b: b, generation: e.launches.Add(1)}
	e.current = h
	e.logger.Info("browser launched", "pid", h.PID(), "generation", h.generation, "took", time.Since(start).Round(time.Millisecond))
	return h, nil
}

// NewContext opens an isolated render context on h. It waits while the
// number of open contexts is at the ceiling, honoring ctx.
func (e *Engine) NewContext(ctx context.Context, h *Handle) (*Context, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if h.invalid.Load() {
		e.sem.Release(1)
		return nil, fmt.Errorf("%w: handle invalidated", ErrCrashed)
	}

	s, err := h.b.newSurface(ctx)
	if err != nil {
		e.sem.Release(1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !h.b.alive() {
			e.Invalidate(h)
			return nil, fmt.Errorf("%w: %v", ErrCrashed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrContextCreate, err)
	}

	e.open.Add(1)
	return &Context{engine: e, handle: h, surface: s}, nil
}

// Healthy reports whether h is still usable: not invalidated, process
// alive and answering a protocol ping within the ping timeout.
func (e *Engine) Healthy(ctx context.Context, h *Handle) bool {
	if h == nil || h.invalid.Load() || !h.b.alive() {
		return false
	}
	return h.b.ping(ctx, e.cfg.PingTimeout) == nil
}

// Invalidate marks h unusable and tears its process down in the
// background. The next Acquire launches a new browser.
func (e *Engine) Invalidate(h *Handle) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == h {
		e.logger.Warn("browser invalidated", "pid", h.PID(), "generation", h.generation)
		e.discardLocked(h)
		return
	}
	h.invalid.Store(true)
}

// discardLocked drops h and reaps its process. Caller holds e.mu.
func (e *Engine) discardLocked(h *Handle) {
	h.invalid.Store(true)
	if e.current == h {
		e.current = nil
	}
	e.reaping.Add(1)
	go func() {
		defer e.reaping.Done()
		if err := h.b.close(); err != nil {
			e.logger.Debug("closing stale browser", "pid", h.PID(), "err", err)
			e.mu.Lock()
			e.reapErrs = append(e.reapErrs, err)
			e.mu.Unlock()
		}
	}()
}

// Launches returns how many browser processes have been started.
func (e *Engine) Launches() int64 { return e.launches.Load() }

// Open returns the number of render contexts currently open.
func (e *Engine) Open() int { return int(e.open.Load()) }

// MaxContexts returns the render-context ceiling.
func (e *Engine) MaxContexts() int { return e.cfg.MaxContexts }

// Close shuts the browser down and waits for every process to be reaped.
// Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.current != nil {
		e.logger.Info("closing browser", "pid", e.current.PID())
		e.discardLocked(e.current)
	}
	e.mu.Unlock()

	e.reaping.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	err := errors.Join(e.reapErrs...)
	e.reapErrs = nil
	return err
}

// Context is an isolated render session owned by one conversion step.
type Context struct {
	engine  *Engine
	handle  *Handle
	surface surface
	once    sync.Once
	err     error
}

// Page returns the page to render into.
func (c *Context) Page() *rod.Page { return c.surface.page() }

// Handle returns the browser the context lives in.
func (c *Context) Handle() *Handle { return c.handle }

// Close destroys the context and frees its slot. Safe to call more than
// once and after a failed render.
func (c *Context) Close() error {
	c.once.Do(func() {
		c.err = c.surface.close()
		c.engine.open.Add(-1)
		c.engine.sem.Release(1)
	})
	return c.err
}
