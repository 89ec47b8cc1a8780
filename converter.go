package doc2img

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-doc2img/internal/assets"
	"github.com/alnah/go-doc2img/internal/engine"
	"github.com/alnah/go-doc2img/internal/fileutil"
	"github.com/alnah/go-doc2img/internal/pipeline"
)

// Converter runs the document-to-image pipeline. It owns one shared
// headless browser; create it once, use it from any number of goroutines,
// and Close it when done.
type Converter struct {
	cfg      converterConfig
	logger   *log.Logger
	styles   pipeline.Styles
	staging  *fileutil.Manager
	renderer renderer
	closed   atomic.Bool
	closeMu  sync.Mutex
}

// NewConverter creates a Converter. The browser is not started until the
// first conversion or an explicit Warmup.
// Returns error if the asset path or a style cannot be loaded.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{cfg: defaultConfig()}

	for _, opt := range opts {
		opt(c)
	}

	c.cfg.maxContexts = ResolveConcurrency(c.cfg.maxContexts)
	if c.cfg.sheetParallelism <= 0 {
		c.cfg.sheetParallelism = c.cfg.maxContexts
	}
	if _, err := ParseCaptureFormat(string(c.cfg.captureFormat)); err != nil {
		return nil, err
	}

	c.logger = c.cfg.logger
	if c.logger == nil {
		c.logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           log.WarnLevel,
		})
	}

	resolver, err := assets.NewStyleResolver(c.cfg.assetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetPath, err)
	}
	styles, err := assets.LoadPageStyles(resolver)
	if err != nil {
		return nil, err
	}
	c.styles = pipeline.Styles{Table: styles.Table, Text: styles.Text}
	c.logger.Debug("styles loaded", "custom", resolver.Overridden(), "path", c.cfg.assetPath)

	c.staging = fileutil.NewManager(c.cfg.stagingDir, c.cfg.memoryLimit)

	// Create renderer if not injected (e.g., by tests)
	if c.renderer == nil {
		eng := engine.New(engine.Config{
			BrowserBin:    c.cfg.browserBin,
			NoSandbox:     c.cfg.noSandbox,
			MaxContexts:   c.cfg.maxContexts,
			LaunchTimeout: c.cfg.launchTimeout,
			Flags:         c.cfg.browserFlags,
			Logger:        c.logger,
		})
		c.renderer = newRodRenderer(eng, captureOptions{
			timeout:        c.cfg.timeout,
			stableFor:      c.cfg.stableFor,
			viewportWidth:  c.cfg.viewportWidth,
			viewportHeight: c.cfg.viewportHeight,
			deviceScale:    c.cfg.deviceScale,
			tableMargin:    c.cfg.tableMargin,
			textMargin:     c.cfg.textMargin,
			format:         c.cfg.captureFormat,
			maxImageDim:    c.cfg.maxImageDim,
		}, c.logger)
	}

	return c, nil
}

// Warmup starts the browser so the first conversion does not pay for it.
func (c *Converter) Warmup(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.renderer.Warmup(ctx)
}

// Close shuts the browser down and waits for its processes to exit.
// Safe to call more than once.
func (c *Converter) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.Swap(true) {
		return nil
	}
	return c.renderer.Close()
}

// Convert runs one request through the pipeline:
// validate, read, convert to markup, render every page, assemble.
//
// The returned Result is never nil and always in a terminal state.
// The error is non-nil exactly when Result.State is StateFailed; a request
// where only some pages rendered completes with Result.Failures set.
// Every staged artifact is released before Convert returns.
// Recovers from internal panics (malformed legacy workbooks) as ErrParse.
func (c *Converter) Convert(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	res = &Result{ID: uuid.NewString(), Name: req.Name, State: StateReceived}
	logger := c.logger.With("request", res.ID)

	scope := c.staging.NewScope(res.ID)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: internal error: %v", ErrParse, r)
			res.fail(err)
		}
		if cerr := scope.Close(); cerr != nil {
			logger.Warn("releasing staged input", "err", cerr)
		}
		res.Duration = time.Since(start)
		if res.State == StateFailed {
			logger.Warn("conversion failed", "name", res.Name, "kind", KindOf(res.Err), "err", res.Err, "took", res.Duration)
		} else {
			logger.Info("conversion done", "name", res.Name, "images", res.Succeeded(), "total", res.Total, "took", res.Duration)
		}
	}()

	if err := c.run(ctx, req, res, scope, logger); err != nil {
		res.fail(err)
		return res, err
	}
	return res, nil
}

func (c *Converter) run(ctx context.Context, req Request, res *Result, scope *fileutil.Scope, logger *log.Logger) error {
	// Validated: nothing is acquired for a request that cannot be served.
	if c.closed.Load() {
		return ErrClosed
	}
	format, err := resolveFormat(req.Format, req.Name)
	if err != nil {
		return err
	}
	if req.Source == nil {
		return fmt.Errorf("%w: no source", ErrDownload)
	}
	res.Format = format
	res.State = StateValidated

	// Downloaded
	data, err := c.download(ctx, req, scope)
	if err != nil {
		return err
	}
	res.State = StateDownloaded
	logger.Debug("input staged", "name", req.Name, "format", format, "bytes", len(data))

	// Converting
	res.State = StateConverting
	markups, err := pipeline.ToMarkup(pipeline.Document{
		Name:    req.Name,
		Format:  pipeline.Format(format),
		Content: data,
	}, c.styles)
	if err != nil {
		return mapPipelineError(err)
	}
	if len(markups) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyDocument, req.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Rendering
	res.State = StateRendering
	res.Total = len(markups)
	outcomes := c.renderAll(ctx, markups, logger)

	// Assembling
	res.State = StateAssembling
	for i, o := range outcomes {
		m := markups[i]
		if o.err != nil {
			res.Failures = append(res.Failures, Failure{Name: m.Name, Index: m.Index, Err: o.err})
			continue
		}
		res.Images = append(res.Images, Image{
			Name:   m.Name,
			Index:  m.Index,
			PNG:    o.capture.PNG,
			Width:  o.capture.Width,
			Height: o.capture.Height,
		})
	}
	if len(res.Images) == 0 {
		return res.Failures[0].Err
	}

	res.State = StateCompleted
	return nil
}

// download stages the request source and returns its bytes.
func (c *Converter) download(ctx context.Context, req Request, scope *fileutil.Scope) ([]byte, error) {
	rc, err := req.Source(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer rc.Close()

	src := &sourceReader{r: rc}
	art, err := scope.Stage(req.Name, src, c.cfg.maxInputBytes)
	switch {
	case err == nil:
	case errors.Is(err, fileutil.ErrTooLarge):
		return nil, fmt.Errorf("%w: %v", ErrTooLarge, err)
	case src.err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrDownload, src.err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	data, err := art.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

// sourceReader remembers the first read error so a failing source can be
// told apart from a failing spool file.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

type renderOutcome struct {
	capture pipeline.Capture
	err     error
}

// renderAll renders every markup, continuing past failures.
// Outcomes are indexed like markups.
func (c *Converter) renderAll(ctx context.Context, markups []pipeline.Markup, logger *log.Logger) []renderOutcome {
	outcomes := make([]renderOutcome, len(markups))

	var g errgroup.Group
	g.SetLimit(c.cfg.sheetParallelism)
	for i, m := range markups {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = renderOutcome{err: fmt.Errorf("%w: internal error: %v", ErrCapture, r)}
				}
			}()
			capture, err := c.renderWithRetry(ctx, m, logger)
			if err != nil {
				logger.Warn("page failed", "page", m.Name, "index", m.Index, "kind", KindOf(err), "err", err)
			}
			outcomes[i] = renderOutcome{capture: capture, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// renderWithRetry retries once when the browser crashed under the page.
func (c *Converter) renderWithRetry(ctx context.Context, m pipeline.Markup, logger *log.Logger) (pipeline.Capture, error) {
	capture, err := c.renderer.Render(ctx, m)
	if err == nil || !errors.Is(err, ErrEngineCrashed) || ctx.Err() != nil {
		return capture, err
	}
	logger.Warn("browser crashed, retrying page", "page", m.Name, "err", err)
	return c.renderer.Render(ctx, m)
}

// mapPipelineError translates markup conversion errors to public sentinels.
func mapPipelineError(err error) error {
	if errors.Is(err, pipeline.ErrUnsupportedFormat) {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return fmt.Errorf("%w: %v", ErrParse, err)
}
