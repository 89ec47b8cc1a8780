// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-doc2img/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserConnect returns hints for browser launch and connection errors.
// Detects CI/Docker environment and suggests the sandbox and binary settings.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	sandboxOff := os.Getenv("DOC2IMG_NO_SANDBOX") == "1" || os.Getenv("ROD_NO_SANDBOX") == "1"
	if (inCI || IsInContainer()) && !sandboxOff {
		hints = append(hints, "use --no-sandbox or DOC2IMG_NO_SANDBOX=1 for Docker/CI")
	}

	if os.Getenv("DOC2IMG_BROWSER_BIN") == "" && os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set DOC2IMG_BROWSER_BIN to use a custom Chrome")
	}

	hints = append(hints, "run 'doc2img doctor' to check the browser setup")
	return formatHints(hints)
}

// ForTimeout returns a hint about increasing the capture timeout.
func ForTimeout() string {
	return format("for large sheets, use --timeout or DOC2IMG_TIMEOUT")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config and creating a config in the user config directory.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	marker := filepath.Join(".config", "doc2img")
	for _, p := range searchedPaths {
		if strings.Contains(p, marker) {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForUnsupportedFormat suggests forcing one of formats for a misnamed file.
func ForUnsupportedFormat(formats []string) string {
	if len(formats) == 0 {
		return ""
	}
	return format("if the content is valid, rename the file or pass --format " + strings.Join(formats, "|"))
}

// ForTooLarge reports the size limit and how to raise it.
func ForTooLarge(limit int64) string {
	return format(fmt.Sprintf("inputs are limited to %d bytes; raise input.maxBytes in the config", limit))
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
