package doc2img

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for library operations.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrDownload          = errors.New("failed to read input document")
	ErrTooLarge          = errors.New("input document too large")
	ErrParse             = errors.New("failed to parse document")
	ErrEmptyDocument     = errors.New("document has nothing to render")
	ErrEngineUnavailable = errors.New("render engine unavailable")
	ErrEngineCrashed     = errors.New("render engine crashed")
	ErrRenderTimeout     = errors.New("render timed out")
	ErrCapture           = errors.New("capture failed")
	ErrEncode            = errors.New("image encoding failed")
	ErrIO                = errors.New("staging I/O failed")
	ErrClosed            = errors.New("converter closed")

	// Configuration errors.
	ErrInvalidAssetPath     = errors.New("invalid asset path")
	ErrInvalidCaptureFormat = errors.New("invalid capture format")
)

// Kind is a machine-readable error category, stable across releases.
type Kind string

// Error kinds.
const (
	KindUnsupportedFormat Kind = "UNSUPPORTED_FORMAT"
	KindDownload          Kind = "DOWNLOAD_FAILURE"
	KindTooLarge          Kind = "INPUT_TOO_LARGE"
	KindParse             Kind = "PARSE_FAILURE"
	KindEngineCrashed     Kind = "ENGINE_CRASHED"
	KindRenderTimeout     Kind = "RENDER_TIMEOUT"
	KindEncode            Kind = "ENCODE_FAILURE"
	KindIO                Kind = "IO_FAILURE"
	KindCanceled          Kind = "CANCELED"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// kindTable is checked in order; the first sentinel found in the chain wins.
var kindTable = []struct {
	err  error
	kind Kind
}{
	{ErrUnsupportedFormat, KindUnsupportedFormat},
	{ErrTooLarge, KindTooLarge},
	{ErrDownload, KindDownload},
	{ErrEmptyDocument, KindParse},
	{ErrParse, KindParse},
	{ErrEngineUnavailable, KindEngineCrashed},
	{ErrEngineCrashed, KindEngineCrashed},
	{ErrClosed, KindInternal},
	{ErrRenderTimeout, KindRenderTimeout},
	{ErrCapture, KindEncode},
	{ErrEncode, KindEncode},
	{ErrIO, KindIO},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// KindOf returns the category of err. Unknown errors are KindInternal;
// a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

// IsRetryable reports whether retrying the same request may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindEngineCrashed, KindRenderTimeout, KindIO:
		return true
	}
	return false
}

var userMessages = map[Kind]string{
	KindDownload:          "the file could not be read",
	KindTooLarge:          "the file is too large",
	KindParse:             "the file could not be parsed",
	KindEngineCrashed:     "the renderer is unavailable, please retry",
	KindRenderTimeout:     "rendering took too long, please retry",
	KindEncode:            "the image could not be produced",
	KindIO:                "a temporary storage error occurred, please retry",
	KindCanceled:          "the conversion was canceled",
	KindInternal:          "internal error",
}

// UserMessage returns a short human-readable explanation of err, free of
// wrapping detail and engine internals.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	if kind == KindUnsupportedFormat {
		return "this file type is not supported; supported files: " +
			strings.Join(SupportedExtensions(), ", ")
	}
	return userMessages[kind]
}
