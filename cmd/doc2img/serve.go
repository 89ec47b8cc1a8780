package main

import (
	"context"
	"fmt"

	"github.com/alnah/go-doc2img/internal/hints"
	"github.com/alnah/go-doc2img/internal/server"
)

// defaultServeLogLevel shows one line per request unless configured otherwise.
const defaultServeLogLevel = "info"

// runServe starts the browser, then serves HTTP until ctx is done.
func runServe(ctx context.Context, f *serveFlags, common *commonFlags, env *Environment) error {
	cfg, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	mergeEngineFlags(&f.engine, cfg)
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultServeLogLevel
	}

	logger, err := newLogger(env.Stderr, common, cfg.Log.Level)
	if err != nil {
		return err
	}

	opts, err := converterOptions(cfg, logger)
	if err != nil {
		return err
	}
	conv, err := env.NewConverter(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warn("browser shutdown", "err", err)
		}
	}()

	if err := conv.Warmup(ctx); err != nil {
		return fmt.Errorf("starting browser: %w%s", err, hints.ForBrowserConnect())
	}

	srv := server.New(conv, server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Input.MaxBytes,
		Logger:         logger,
	})
	return srv.Run(ctx)
}
