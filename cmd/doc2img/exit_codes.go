package main

import (
	"errors"
	"os"

	"github.com/alnah/go-doc2img"
	"github.com/alnah/go-doc2img/internal/config"
)

// Exit codes for the doc2img CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Every input fully converted
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or unsupported input
	ExitIO      = 3 // File not found, unreadable input, unwritable output
	ExitBrowser = 4 // Browser launch, crash, or render timeout
	ExitPartial = 5 // Some images were produced, some were not
)

// exitCodeFor returns the appropriate exit code for an error.
// Library errors are classified through doc2img.KindOf; CLI and config
// sentinels are matched with errors.Is.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, errPartial) {
		return ExitPartial
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrWriteImage) {
		return ExitIO
	}

	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrFieldRange) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, doc2img.ErrInvalidAssetPath) ||
		errors.Is(err, doc2img.ErrInvalidCaptureFormat) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidLogLevel) {
		return ExitUsage
	}

	switch doc2img.KindOf(err) {
	case doc2img.KindUnsupportedFormat, doc2img.KindParse, doc2img.KindTooLarge:
		return ExitUsage
	case doc2img.KindDownload, doc2img.KindIO:
		return ExitIO
	case doc2img.KindEngineCrashed, doc2img.KindRenderTimeout:
		return ExitBrowser
	default:
		return ExitGeneral
	}
}
