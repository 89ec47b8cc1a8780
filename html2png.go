package doc2img

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-doc2img/internal/engine"
	"github.com/alnah/go-doc2img/internal/imgutil"
	"github.com/alnah/go-doc2img/internal/pipeline"
)

// renderer turns one markup page into a PNG capture.
type renderer interface {
	Render(ctx context.Context, m pipeline.Markup) (pipeline.Capture, error)
	Warmup(ctx context.Context) error
	Close() error
}

// Compile-time interface check
var _ renderer = (*rodRenderer)(nil)

// captureOptions controls page layout and framing.
type captureOptions struct {
	timeout        time.Duration
	stableFor      time.Duration
	viewportWidth  int
	viewportHeight int
	deviceScale    float64
	tableMargin    float64
	textMargin     float64
	format         CaptureFormat
	maxImageDim    int
}

// captureQuality applies to lossy capture formats.
const captureQuality = 92

// browserPool is the part of *engine.Engine the renderer drives.
type browserPool interface {
	Acquire(ctx context.Context) (*engine.Handle, error)
	NewContext(ctx context.Context, h *engine.Handle) (*engine.Context, error)
	Healthy(ctx context.Context, h *engine.Handle) bool
	Invalidate(h *engine.Handle)
	Close() error
}

var _ browserPool = (*engine.Engine)(nil)

// rodRenderer renders markup in the shared headless Chrome.
// Chrome is launched on first use and relaunched after a crash.
type rodRenderer struct {
	engine browserPool
	opts   captureOptions
	logger *log.Logger
}

func newRodRenderer(eng browserPool, opts captureOptions, logger *log.Logger) *rodRenderer {
	return &rodRenderer{engine: eng, opts: opts, logger: logger}
}

// Warmup launches the browser ahead of the first request.
func (r *rodRenderer) Warmup(ctx context.Context) error {
	if _, err := r.engine.Acquire(ctx); err != nil {
		return r.classify(ctx, nil, nil, err)
	}
	return nil
}

// Close shuts the browser down.
func (r *rodRenderer) Close() error {
	return r.engine.Close()
}

// Render loads m into an isolated context, waits for layout to settle,
// screenshots the region around m.Selector and normalizes it to PNG.
// The render context is destroyed on every exit path.
func (r *rodRenderer) Render(ctx context.Context, m pipeline.Markup) (pipeline.Capture, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Capture{}, err
	}

	h, err := r.engine.Acquire(ctx)
	if err != nil {
		return pipeline.Capture{}, r.classify(ctx, nil, nil, err)
	}

	// Waiting for a free slot is bounded by the caller only.
	rc, err := r.engine.NewContext(ctx, h)
	if err != nil {
		return pipeline.Capture{}, r.classify(ctx, nil, h, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			r.logger.Debug("closing render context", "page", m.Name, "err", cerr)
		}
	}()

	captureCtx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	raw, err := r.capture(captureCtx, rc, m)
	if err != nil {
		return pipeline.Capture{}, r.classify(ctx, captureCtx, h, err)
	}

	img, err := imgutil.Normalize(raw, r.opts.maxImageDim)
	if err != nil {
		return pipeline.Capture{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return pipeline.Capture{PNG: img.PNG, Width: img.Width, Height: img.Height}, nil
}

func (r *rodRenderer) capture(ctx context.Context, rc *engine.Context, m pipeline.Markup) ([]byte, error) {
	page := rc.Page().Context(ctx)

	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.opts.viewportWidth,
		Height:            r.opts.viewportHeight,
		DeviceScaleFactor: r.opts.deviceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}

	if err := page.SetDocumentContent(m.HTML); err != nil {
		return nil, fmt.Errorf("loading markup: %w", err)
	}

	if err := page.WaitStable(r.opts.stableFor); err != nil {
		return nil, fmt.Errorf("waiting for layout: %w", err)
	}

	el, err := page.Element(m.Selector)
	if err != nil {
		return nil, fmt.Errorf("locating %q: %w", m.Selector, err)
	}
	shape, err := el.Shape()
	if err != nil {
		return nil, fmt.Errorf("measuring %q: %w", m.Selector, err)
	}
	box := shape.Box()
	if box == nil {
		return nil, fmt.Errorf("%w: %q has no layout box", ErrCapture, m.Selector)
	}

	clip := captureRegion(box, r.margin(m.Kind))
	req := &proto.PageCaptureScreenshot{
		Format:                r.protoFormat(),
		Clip:                  clip.viewport(),
		CaptureBeyondViewport: true,
	}
	if r.opts.format == CaptureJPEG || r.opts.format == CaptureWebP {
		q := captureQuality
		req.Quality = &q
	}

	raw, err := page.Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}

	r.logger.Debug("captured", "page", m.Name, "kind", m.Kind, "width", clip.Width, "height", clip.Height, "bytes", len(raw))
	return raw, nil
}

func (r *rodRenderer) margin(k pipeline.Kind) float64 {
	if k == pipeline.KindText {
		return r.opts.textMargin
	}
	return r.opts.tableMargin
}

func (r *rodRenderer) protoFormat() proto.PageCaptureScreenshotFormat {
	switch r.opts.format {
	case CaptureJPEG:
		return proto.PageCaptureScreenshotFormatJpeg
	case CaptureWebP:
		return proto.PageCaptureScreenshotFormatWebp
	default:
		return proto.PageCaptureScreenshotFormatPng
	}
}

// classify maps a render failure onto the public error taxonomy.
// The caller's own cancellation wins; then the capture deadline; then the
// health of the browser decides between a crash and a capture failure.
func (r *rodRenderer) classify(ctx, captureCtx context.Context, h *engine.Handle, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, ErrCapture):
		return err
	case errors.Is(err, engine.ErrLaunch), errors.Is(err, engine.ErrClosed):
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	case errors.Is(err, engine.ErrCrashed):
		return fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	if captureCtx != nil && errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: after %s", ErrRenderTimeout, r.opts.timeout)
	}
	if h != nil && !r.engine.Healthy(context.WithoutCancel(ctx), h) {
		r.engine.Invalidate(h)
		return fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	return fmt.Errorf("%w: %v", ErrCapture, err)
}
