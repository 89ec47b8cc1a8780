package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-doc2img/internal/process"
)

// Compile-time interface checks
var (
	_ browser = (*rodBrowser)(nil)
	_ surface = (*rodSurface)(nil)
)

// defaultFlags are passed to every launched browser.
var defaultFlags = []flags.Flag{"disable-gpu", "disable-dev-shm-usage", "hide-scrollbars", "mute-audio"}

// rodBrowser is a Chrome process started through the rod launcher.
type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// launchRod starts Chrome and connects to it over the DevTools protocol.
// ctx bounds the launch only; the process outlives it.
func launchRod(ctx context.Context, cfg Config) (browser, error) {
	l := launcher.New().Context(ctx)

	bin := cfg.BrowserBin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}
	if cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	for _, f := range defaultFlags {
		l = l.Set(f)
	}
	for _, f := range cfg.Flags {
		name, value, hasValue := strings.Cut(f, "=")
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	u, err := l.Launch()
	if err != nil {
		reap(l)
		return nil, err
	}

	b := rod.New().ControlURL(u)
	if err := b.Context(ctx).Connect(); err != nil {
		reap(l)
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &rodBrowser{launcher: l, browser: b}, nil
}

func (r *rodBrowser) newSurface(ctx context.Context) (surface, error) {
	incognito, err := r.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}

	return &rodSurface{ctx: incognito, p: page}, nil
}

func (r *rodBrowser) ping(ctx context.Context, timeout time.Duration) error {
	_, err := proto.BrowserGetVersion{}.Call(r.browser.Context(ctx).Timeout(timeout))
	return err
}

func (r *rodBrowser) alive() bool { return process.Alive(r.pid()) }

func (r *rodBrowser) pid() int { return r.launcher.PID() }

// close asks Chrome to quit, then kills whatever is left of its process
// group and removes the profile directory.
func (r *rodBrowser) close() error {
	err := r.browser.Close()
	reap(r.launcher)
	if err != nil && !r.alive() {
		return nil
	}
	return err
}

// reap kills the launched process tree and waits for it to exit.
func reap(l *launcher.Launcher) {
	pid := l.PID()
	if pid == 0 {
		return
	}
	process.KillProcessGroup(pid)
	l.Kill()
	l.Cleanup()
}

// rodSurface is one incognito browser context holding a single page.
type rodSurface struct {
	ctx *rod.Browser
	p   *rod.Page
}

func (s *rodSurface) page() *rod.Page { return s.p }

// close disposes the incognito context, which also closes its page.
func (s *rodSurface) close() error {
	return s.ctx.Close()
}
