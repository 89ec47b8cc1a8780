package doc2img

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Source opens the raw bytes of an input document. It is called at most
// once per request, after the format has been validated.
type Source func(ctx context.Context) (io.ReadCloser, error)

// BytesSource returns a Source serving b.
func BytesSource(b []byte) Source {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
}

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source {
	return func(context.Context) (io.ReadCloser, error) {
		return os.Open(path) // #nosec G304 -- user-provided path
	}
}

// Request describes one document to convert.
type Request struct {
	Name   string // original file name (required for format detection when Format is empty)
	Format Format // declared format (optional)
	Source Source // input bytes (required)
}

// CaptureFormat is the screenshot codec requested from the browser.
// Images are always delivered as PNG.
type CaptureFormat string

// Capture formats.
const (
	CapturePNG  CaptureFormat = "png"
	CaptureJPEG CaptureFormat = "jpeg"
	CaptureWebP CaptureFormat = "webp"
)

// ParseCaptureFormat parses a capture format name (case-insensitive).
// Empty means PNG.
func ParseCaptureFormat(s string) (CaptureFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return CapturePNG, nil
	case "jpeg", "jpg":
		return CaptureJPEG, nil
	case "webp":
		return CaptureWebP, nil
	default:
		return "", fmt.Errorf("%w: %q (must be png, jpeg, or webp)", ErrInvalidCaptureFormat, s)
	}
}

// Default values applied by NewConverter.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultStableFor      = 300 * time.Millisecond
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultDeviceScale    = 1.0
	DefaultTableMargin    = 16
	DefaultTextMargin     = 20
	DefaultMaxInputBytes  = 20 << 20
)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	timeout          time.Duration
	stableFor        time.Duration
	maxContexts      int
	launchTimeout    time.Duration
	browserBin       string
	noSandbox        bool
	browserFlags     []string
	viewportWidth    int
	viewportHeight   int
	deviceScale      float64
	tableMargin      float64
	textMargin       float64
	captureFormat    CaptureFormat
	maxImageDim      int
	sheetParallelism int
	maxInputBytes    int64
	memoryLimit      int64
	stagingDir       string
	assetPath        string
	logger           *log.Logger
}

func defaultConfig() converterConfig {
	return converterConfig{
		timeout:        DefaultTimeout,
		stableFor:      DefaultStableFor,
		viewportWidth:  DefaultViewportWidth,
		viewportHeight: DefaultViewportHeight,
		deviceScale:    DefaultDeviceScale,
		tableMargin:    DefaultTableMargin,
		textMargin:     DefaultTextMargin,
		captureFormat:  CapturePNG,
		maxInputBytes:  DefaultMaxInputBytes,
	}
}

// Option configures a Converter.
type Option func(*Converter)

// WithTimeout sets the per-page capture timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("doc2img: WithTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.timeout = d
	}
}

// WithStableFor sets how long the page must stay unchanged before capture.
func WithStableFor(d time.Duration) Option {
	return func(c *Converter) {
		if d > 0 {
			c.cfg.stableFor = d
		}
	}
}

// WithMaxContexts sets the ceiling of concurrently open render contexts.
// Zero or negative uses ResolveConcurrency(0).
func WithMaxContexts(n int) Option {
	return func(c *Converter) {
		c.cfg.maxContexts = n
	}
}

// WithLaunchTimeout bounds how long a browser start may take.
// Non-positive values are ignored.
func WithLaunchTimeout(d time.Duration) Option {
	return func(c *Converter) {
		if d > 0 {
			c.cfg.launchTimeout = d
		}
	}
}

// WithSheetParallelism sets how many pages of one document render at once.
// Zero or negative means the render-context ceiling.
func WithSheetParallelism(n int) Option {
	return func(c *Converter) {
		c.cfg.sheetParallelism = n
	}
}

// WithBrowserBin sets the Chrome executable. Empty auto-detects.
func WithBrowserBin(path string) Option {
	return func(c *Converter) {
		c.cfg.browserBin = path
	}
}

// WithNoSandbox disables the Chrome sandbox, needed in most containers.
func WithNoSandbox(enable bool) Option {
	return func(c *Converter) {
		c.cfg.noSandbox = enable
	}
}

// WithBrowserFlags adds Chrome switches ("name" or "name=value").
func WithBrowserFlags(flags ...string) Option {
	return func(c *Converter) {
		c.cfg.browserFlags = append(c.cfg.browserFlags, flags...)
	}
}

// WithViewport sets the browser viewport in CSS pixels.
func WithViewport(width, height int) Option {
	return func(c *Converter) {
		if width > 0 {
			c.cfg.viewportWidth = width
		}
		if height > 0 {
			c.cfg.viewportHeight = height
		}
	}
}

// WithDeviceScale sets the device pixel ratio (2 doubles image resolution).
func WithDeviceScale(scale float64) Option {
	return func(c *Converter) {
		if scale > 0 {
			c.cfg.deviceScale = scale
		}
	}
}

// WithTableMargin sets the padding in CSS pixels kept around a table.
func WithTableMargin(px float64) Option {
	return func(c *Converter) {
		if px >= 0 {
			c.cfg.tableMargin = px
		}
	}
}

// WithTextMargin sets the padding in CSS pixels kept around plain text.
func WithTextMargin(px float64) Option {
	return func(c *Converter) {
		if px >= 0 {
			c.cfg.textMargin = px
		}
	}
}

// WithCaptureFormat sets the codec the browser captures with.
func WithCaptureFormat(f CaptureFormat) Option {
	return func(c *Converter) {
		c.cfg.captureFormat = f
	}
}

// WithMaxImageDimension scales images down so neither side exceeds px.
// Zero keeps the captured size.
func WithMaxImageDimension(px int) Option {
	return func(c *Converter) {
		if px >= 0 {
			c.cfg.maxImageDim = px
		}
	}
}

// WithMaxInputBytes caps the input document size. Zero or negative removes the cap.
func WithMaxInputBytes(n int64) Option {
	return func(c *Converter) {
		c.cfg.maxInputBytes = n
	}
}

// WithMemoryLimit sets the input size above which documents are spooled to disk.
func WithMemoryLimit(n int64) Option {
	return func(c *Converter) {
		c.cfg.memoryLimit = n
	}
}

// WithStagingDir sets the directory for spooled inputs. Empty uses os.TempDir().
func WithStagingDir(dir string) Option {
	return func(c *Converter) {
		c.cfg.stagingDir = dir
	}
}

// WithAssetPath overrides the built-in table and text styles with
// styles/table.css and styles/text.css found under dir.
func WithAssetPath(dir string) Option {
	return func(c *Converter) {
		c.cfg.assetPath = dir
	}
}

// WithLogger sets the logger. The default logs warnings and errors to stderr.
func WithLogger(l *log.Logger) Option {
	return func(c *Converter) {
		c.cfg.logger = l
	}
}

// withRenderer replaces the browser-backed renderer (tests).
func withRenderer(r renderer) Option {
	return func(c *Converter) {
		c.renderer = r
	}
}
