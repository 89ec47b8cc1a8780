package main

import (
	"time"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config   string
	logLevel string
	quiet    bool
	verbose  bool
}

// engineFlags holds browser and capture flags for commands that render.
type engineFlags struct {
	browserBin    string
	noSandbox     bool
	maxContexts   int
	timeout       time.Duration
	captureFormat string
	assetPath     string
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	engine  engineFlags
	output  string
	format  string
	workers int
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	engine engineFlags
	addr   string
}

// addCommonFlags registers the persistent flags of the root command.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed progress")
}

// addEngineFlags registers the rendering flags.
func addEngineFlags(fs *flag.FlagSet, f *engineFlags) {
	fs.StringVar(&f.browserBin, "browser-bin", "", "Chrome/Chromium binary (default: auto-detect)")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox (containers/CI)")
	fs.IntVar(&f.maxContexts, "max-contexts", 0, "open render contexts ceiling (0 = auto)")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-page capture timeout (e.g. 30s, 2m)")
	fs.StringVar(&f.captureFormat, "capture-format", "", "screenshot codec: png, jpeg, webp")
	fs.StringVar(&f.assetPath, "asset-path", "", "directory with custom table.css and text.css")
}
