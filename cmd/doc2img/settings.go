package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/alnah/go-doc2img"
	"github.com/alnah/go-doc2img/internal/config"
	"github.com/alnah/go-doc2img/internal/hints"
)

// ErrInvalidLogLevel is returned for an unknown --log-level value.
var ErrInvalidLogLevel = errors.New("invalid log level")

// loadSettings resolves the effective configuration:
// flags > env vars > config file > defaults. Flags are merged by the caller.
func loadSettings(common *commonFlags, env *Environment) (*config.Config, error) {
	envCfg := loadEnvConfig(env.Getenv)
	warnUnknownEnvVars(env.Stderr, env.Environ())

	name := common.config
	if name == "" {
		name = envCfg.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, fmt.Errorf("%w%s", err, hints.ForConfigNotFound([]string{name}))
			}
			return nil, err
		}
		cfg = loaded
	}

	applyEnvConfig(envCfg, cfg)
	if common.logLevel != "" {
		cfg.Log.Level = common.logLevel
	}
	return cfg, nil
}

// mergeEngineFlags applies explicitly set engine flags over cfg.
func mergeEngineFlags(f *engineFlags, cfg *config.Config) {
	if f.browserBin != "" {
		cfg.Browser.Bin = f.browserBin
	}
	if f.noSandbox {
		cfg.Browser.NoSandbox = true
	}
	if f.maxContexts > 0 {
		cfg.Browser.MaxContexts = f.maxContexts
	}
	if f.timeout > 0 {
		cfg.Capture.Timeout = config.Duration(f.timeout)
	}
	if f.captureFormat != "" {
		cfg.Capture.Format = f.captureFormat
	}
	if f.assetPath != "" {
		cfg.Assets.BasePath = f.assetPath
	}
}

// converterOptions translates cfg into library options.
// Zero fields are left to the library defaults.
func converterOptions(cfg *config.Config, logger *log.Logger) ([]doc2img.Option, error) {
	format, err := doc2img.ParseCaptureFormat(cfg.Capture.Format)
	if err != nil {
		return nil, err
	}

	opts := []doc2img.Option{
		doc2img.WithLogger(logger),
		doc2img.WithCaptureFormat(format),
		doc2img.WithNoSandbox(cfg.Browser.NoSandbox),
		doc2img.WithMaxContexts(cfg.Browser.MaxContexts),
		doc2img.WithSheetParallelism(cfg.Capture.SheetParallelism),
		doc2img.WithLaunchTimeout(cfg.Browser.LaunchTimeout.Std()),
		doc2img.WithStableFor(cfg.Capture.StableFor.Std()),
		doc2img.WithViewport(cfg.Capture.ViewportWidth, cfg.Capture.ViewportHeight),
		doc2img.WithDeviceScale(cfg.Capture.DeviceScale),
		doc2img.WithMaxImageDimension(cfg.Capture.MaxImageDimension),
		doc2img.WithMemoryLimit(cfg.Input.MemoryLimit),
	}
	if cfg.Input.MaxBytes > 0 {
		opts = append(opts, doc2img.WithMaxInputBytes(cfg.Input.MaxBytes))
	}
	if cfg.Capture.Timeout > 0 {
		opts = append(opts, doc2img.WithTimeout(cfg.Capture.Timeout.Std()))
	}
	if cfg.Browser.Bin != "" {
		opts = append(opts, doc2img.WithBrowserBin(cfg.Browser.Bin))
	}
	if cfg.Capture.TableMargin > 0 {
		opts = append(opts, doc2img.WithTableMargin(float64(cfg.Capture.TableMargin)))
	}
	if cfg.Capture.TextMargin > 0 {
		opts = append(opts, doc2img.WithTextMargin(float64(cfg.Capture.TextMargin)))
	}
	if cfg.Input.StagingDir != "" {
		opts = append(opts, doc2img.WithStagingDir(cfg.Input.StagingDir))
	}
	if cfg.Assets.BasePath != "" {
		opts = append(opts, doc2img.WithAssetPath(cfg.Assets.BasePath))
	}
	return opts, nil
}

// newLogger builds the CLI logger. --verbose and --quiet win over the
// configured level.
func newLogger(w io.Writer, common *commonFlags, level string) (*log.Logger, error) {
	lvl := log.WarnLevel
	if level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("%w: %q (must be debug, info, warn, or error)", ErrInvalidLogLevel, level)
		}
		lvl = parsed
	}
	switch {
	case common.verbose:
		lvl = log.DebugLevel
	case common.quiet:
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
	}), nil
}
