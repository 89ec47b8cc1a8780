package main

// Notes:
// - exitCodeFor: CLI sentinels, config sentinels and every library Kind,
//   plus wrapped errors to verify the errors.Is chain.
// - Exit code constants: Unix conventions and values below 126.

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/alnah/go-doc2img"
	"github.com/alnah/go-doc2img/internal/config"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},

		{"partial", errPartial, ExitPartial},

		{"file not exist", os.ErrNotExist, ExitIO},
		{"permission denied", os.ErrPermission, ExitIO},
		{"no input", ErrNoInput, ExitIO},
		{"write image", ErrWriteImage, ExitIO},
		{"download", doc2img.ErrDownload, ExitIO},
		{"staging io", doc2img.ErrIO, ExitIO},
		{"wrapped not exist", fmt.Errorf("reading: %w", os.ErrNotExist), ExitIO},

		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"field range", config.ErrFieldRange, ExitUsage},
		{"invalid asset path", doc2img.ErrInvalidAssetPath, ExitUsage},
		{"invalid capture format", doc2img.ErrInvalidCaptureFormat, ExitUsage},
		{"invalid workers", ErrInvalidWorkerCount, ExitUsage},
		{"invalid log level", ErrInvalidLogLevel, ExitUsage},
		{"unsupported format", doc2img.ErrUnsupportedFormat, ExitUsage},
		{"parse", doc2img.ErrParse, ExitUsage},
		{"empty document", doc2img.ErrEmptyDocument, ExitUsage},
		{"too large", doc2img.ErrTooLarge, ExitUsage},

		{"engine crashed", doc2img.ErrEngineCrashed, ExitBrowser},
		{"engine unavailable", doc2img.ErrEngineUnavailable, ExitBrowser},
		{"render timeout", doc2img.ErrRenderTimeout, ExitBrowser},
		{"wrapped crash", fmt.Errorf("starting browser: %w", doc2img.ErrEngineCrashed), ExitBrowser},

		{"encode", doc2img.ErrEncode, ExitGeneral},
		{"unknown", errors.New("boom"), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodes_Conventions(t *testing.T) {
	t.Parallel()

	codes := []int{ExitSuccess, ExitGeneral, ExitUsage, ExitIO, ExitBrowser, ExitPartial}
	seen := make(map[int]bool)
	for _, c := range codes {
		if c >= 126 {
			t.Errorf("exit code %d collides with shell-reserved range", c)
		}
		if seen[c] {
			t.Errorf("exit code %d defined twice", c)
		}
		seen[c] = true
	}
	if ExitSuccess != 0 || ExitGeneral != 1 || ExitUsage != 2 {
		t.Error("0/1/2 must keep their Unix meaning")
	}
}
