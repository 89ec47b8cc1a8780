package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-doc2img/internal/config"
)

// envPrefix starts every variable doc2img reads.
const envPrefix = "DOC2IMG_"

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring config files.
type envConfig struct {
	ConfigPath  string        // DOC2IMG_CONFIG: config file name or path
	Timeout     time.Duration // DOC2IMG_TIMEOUT: per-page capture timeout
	MaxContexts int           // DOC2IMG_MAX_CONTEXTS: open render contexts ceiling
	BrowserBin  string        // DOC2IMG_BROWSER_BIN: Chrome binary
	NoSandbox   bool          // DOC2IMG_NO_SANDBOX: disable the Chrome sandbox
	Addr        string        // DOC2IMG_ADDR: server listen address
	LogLevel    string        // DOC2IMG_LOG_LEVEL: debug, info, warn, error
	OutputDir   string        // DOC2IMG_OUTPUT_DIR: default image directory
	Container   bool          // DOC2IMG_CONTAINER: force container detection
}

// knownEnvVars lists valid DOC2IMG_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"DOC2IMG_CONFIG":       true,
	"DOC2IMG_TIMEOUT":      true,
	"DOC2IMG_MAX_CONTEXTS": true,
	"DOC2IMG_BROWSER_BIN":  true,
	"DOC2IMG_NO_SANDBOX":   true,
	"DOC2IMG_ADDR":         true,
	"DOC2IMG_LOG_LEVEL":    true,
	"DOC2IMG_OUTPUT_DIR":   true,
	"DOC2IMG_CONTAINER":    true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numeric and duration values are ignored.
func loadEnvConfig(getenv func(string) string) *envConfig {
	cfg := &envConfig{
		ConfigPath: getenv("DOC2IMG_CONFIG"),
		BrowserBin: getenv("DOC2IMG_BROWSER_BIN"),
		Addr:       getenv("DOC2IMG_ADDR"),
		LogLevel:   getenv("DOC2IMG_LOG_LEVEL"),
		OutputDir:  getenv("DOC2IMG_OUTPUT_DIR"),
		NoSandbox:  envBool(getenv("DOC2IMG_NO_SANDBOX")),
		Container:  envBool(getenv("DOC2IMG_CONTAINER")),
	}

	if timeout := getenv("DOC2IMG_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if n := getenv("DOC2IMG_MAX_CONTEXTS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			cfg.MaxContexts = v
		}
	}

	return cfg
}

// envBool accepts 1/true/yes, case-insensitive.
func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// warnUnknownEnvVars writes a warning for each unrecognized DOC2IMG_* variable.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, env := range environ {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig overlays environment values on cfg. Set variables win over
// the config file; flags are merged afterwards and win over both.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Timeout > 0 {
		cfg.Capture.Timeout = config.Duration(env.Timeout)
	}
	if env.MaxContexts > 0 {
		cfg.Browser.MaxContexts = env.MaxContexts
	}
	if env.BrowserBin != "" {
		cfg.Browser.Bin = env.BrowserBin
	}
	if env.NoSandbox {
		cfg.Browser.NoSandbox = true
	}
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.OutputDir != "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
}
