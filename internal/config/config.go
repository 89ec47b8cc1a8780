// Package config loads doc2img settings from a YAML or TOML file.
//
// Every field is optional; a zero value means "use the built-in default".
// The CLI layers environment variables and flags on top of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-doc2img/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrFieldRange      = errors.New("field out of range")
)

// Field limits.
const (
	MaxPathLength       = 4096
	MaxAddrLength       = 256
	MaxContextsLimit    = 64
	MaxViewportSide     = 16384
	MaxDeviceScale      = 4.0
	MaxMargin           = 500
	MaxImageSide        = 32767
	MaxSheetParallelism = 32
)

// configDirName is the directory under the user config dir searched for
// named configs.
const configDirName = "doc2img"

// Config holds all settings that can be read from a file.
type Config struct {
	Browser BrowserConfig `yaml:"browser" toml:"browser"`
	Capture CaptureConfig `yaml:"capture" toml:"capture"`
	Input   InputConfig   `yaml:"input" toml:"input"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Assets  AssetsConfig  `yaml:"assets" toml:"assets"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// BrowserConfig defines the shared headless Chrome process.
type BrowserConfig struct {
	Bin           string   `yaml:"bin" toml:"bin"`                     // Empty = auto-detect
	NoSandbox     bool     `yaml:"noSandbox" toml:"noSandbox"`         // Required in most containers
	MaxContexts   int      `yaml:"maxContexts" toml:"maxContexts"`     // Open render contexts ceiling
	LaunchTimeout Duration `yaml:"launchTimeout" toml:"launchTimeout"` // Browser start deadline
}

// CaptureConfig defines rendering and screenshot settings.
type CaptureConfig struct {
	Timeout           Duration `yaml:"timeout" toml:"timeout"`     // Per page
	StableFor         Duration `yaml:"stableFor" toml:"stableFor"` // Quiet period before capture
	ViewportWidth     int      `yaml:"viewportWidth" toml:"viewportWidth"`
	ViewportHeight    int      `yaml:"viewportHeight" toml:"viewportHeight"`
	DeviceScale       float64  `yaml:"deviceScale" toml:"deviceScale"`
	TableMargin       int      `yaml:"tableMargin" toml:"tableMargin"`
	TextMargin        int      `yaml:"textMargin" toml:"textMargin"`
	Format            string   `yaml:"format" toml:"format"` // png, jpeg, webp
	MaxImageDimension int      `yaml:"maxImageDimension" toml:"maxImageDimension"`
	SheetParallelism  int      `yaml:"sheetParallelism" toml:"sheetParallelism"`
}

// InputConfig defines limits on accepted documents.
type InputConfig struct {
	MaxBytes    int64  `yaml:"maxBytes" toml:"maxBytes"`
	MemoryLimit int64  `yaml:"memoryLimit" toml:"memoryLimit"` // Larger inputs spool to disk
	StagingDir  string `yaml:"stagingDir" toml:"stagingDir"`
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir" toml:"defaultDir"` // Empty = same as source
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath" toml:"basePath"` // Empty = use embedded styles
}

// ServerConfig defines the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// LogConfig defines logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"` // debug, info, warn, error
}

// Validate checks lengths and ranges. Called automatically by LoadConfig,
// but available for consumers who construct Config manually.
func (c *Config) Validate() error {
	paths := []struct {
		field, value string
	}{
		{"browser.bin", c.Browser.Bin},
		{"input.stagingDir", c.Input.StagingDir},
		{"output.defaultDir", c.Output.DefaultDir},
		{"assets.basePath", c.Assets.BasePath},
	}
	for _, p := range paths {
		if err := validateFieldLength(p.field, p.value, MaxPathLength); err != nil {
			return err
		}
	}
	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}

	ints := []struct {
		field    string
		value    int
		maxValue int
	}{
		{"browser.maxContexts", c.Browser.MaxContexts, MaxContextsLimit},
		{"capture.viewportWidth", c.Capture.ViewportWidth, MaxViewportSide},
		{"capture.viewportHeight", c.Capture.ViewportHeight, MaxViewportSide},
		{"capture.tableMargin", c.Capture.TableMargin, MaxMargin},
		{"capture.textMargin", c.Capture.TextMargin, MaxMargin},
		{"capture.maxImageDimension", c.Capture.MaxImageDimension, MaxImageSide},
		{"capture.sheetParallelism", c.Capture.SheetParallelism, MaxSheetParallelism},
	}
	for _, f := range ints {
		if f.value < 0 || f.value > f.maxValue {
			return fmt.Errorf("%w: %s must be between 0 and %d, got %d", ErrFieldRange, f.field, f.maxValue, f.value)
		}
	}

	if c.Capture.DeviceScale < 0 || c.Capture.DeviceScale > MaxDeviceScale {
		return fmt.Errorf("%w: capture.deviceScale must be between 0 and %.0f, got %.2f", ErrFieldRange, MaxDeviceScale, c.Capture.DeviceScale)
	}
	if c.Capture.Timeout < 0 || c.Capture.StableFor < 0 || c.Browser.LaunchTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrFieldRange)
	}
	if c.Input.MaxBytes < 0 || c.Input.MemoryLimit < 0 {
		return fmt.Errorf("%w: input sizes must not be negative", ErrFieldRange)
	}

	switch strings.ToLower(c.Capture.Format) {
	case "", "png", "jpeg", "webp":
	default:
		return fmt.Errorf("capture.format: invalid value %q (must be png, jpeg, or webp)", c.Capture.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: invalid value %q (must be debug, info, warn, or error)", c.Log.Level)
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns an empty configuration: every setting uses its default.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	syntax, err := SyntaxFor(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := Decode(data, syntax, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml, .toml
// Tries locations in order: current directory, <user config dir>/doc2img/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml", ".toml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, configDirName, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
