package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/go-doc2img"
	"github.com/alnah/go-doc2img/internal/fileutil"
)

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// versionTimeout bounds `chrome --version`.
const versionTimeout = 5 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"`
	Browser  browserInfo `json:"browser"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// browserInfo holds Chrome/Chromium detection results.
type browserInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     bool   `json:"no_sandbox"`
	BrowserBin    string `json:"browser_bin,omitempty"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool     `json:"temp_writable"`
	MaxContexts  int      `json:"max_contexts"`
	Extensions   []string `json:"extensions"`
}

// doctor runs the checks. Tests replace lookPath and browserVersion.
type doctor struct {
	getenv         func(string) string
	lookPath       func() (string, bool)
	browserVersion func(ctx context.Context, bin string) (string, error)
	statFile       func(string) error
	tempDir        string
}

func newDoctor(env *Environment) *doctor {
	return &doctor{
		getenv:         env.Getenv,
		lookPath:       launcher.LookPath,
		browserVersion: chromeVersion,
		statFile: func(p string) error {
			_, err := os.Stat(p)
			return err
		},
	}
}

// runDoctor executes the doctor command and prints the report.
// Returns errDoctor when a blocking problem was found.
func runDoctor(ctx context.Context, jsonOutput bool, env *Environment) error {
	result := newDoctor(env).run(ctx)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return errDoctor
	}
	return nil
}

// errDoctor is returned when the doctor found errors; the report is the message.
var errDoctor = errors.New("doctor found problems")

// run performs all diagnostic checks.
func (d *doctor) run(ctx context.Context) *doctorResult {
	browserBin := d.getenv("DOC2IMG_BROWSER_BIN")
	if browserBin == "" {
		browserBin = d.getenv("ROD_BROWSER_BIN")
	}

	result := &doctorResult{
		Status: statusReady,
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  envBool(d.getenv("DOC2IMG_NO_SANDBOX")) || envBool(d.getenv("ROD_NO_SANDBOX")),
			BrowserBin: browserBin,
		},
	}

	d.checkBrowser(ctx, result)
	d.checkEnvironment(result)
	d.checkSystem(result)

	switch {
	case len(result.Errors) > 0:
		result.Status = statusErrors
	case len(result.Warnings) > 0:
		result.Status = statusWarnings
	}

	return result
}

// checkBrowser locates Chrome and reads its version.
func (d *doctor) checkBrowser(ctx context.Context, result *doctorResult) {
	bin := result.Env.BrowserBin
	if bin == "" {
		var found bool
		bin, found = d.lookPath()
		if !found {
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found. Install Chrome or set DOC2IMG_BROWSER_BIN")
			return
		}
	}

	if err := d.statFile(bin); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Chrome not found at %s", bin))
		return
	}

	result.Browser.Found = true
	result.Browser.Path = bin
	result.Browser.Sandbox = !result.Env.NoSandbox

	version, err := d.browserVersion(ctx, bin)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not get Chrome version: %v", err))
		return
	}
	result.Browser.Version = version
}

// checkEnvironment detects container and CI environments.
func (d *doctor) checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = d.isContainer()

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if d.getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if (result.Env.Container || result.Env.CI) && !result.Env.NoSandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but the sandbox is enabled. Set DOC2IMG_NO_SANDBOX=1")
	}
}

// isContainer returns whether a container was detected and which signal said so.
func (d *doctor) isContainer() (bool, string) {
	if envBool(d.getenv("DOC2IMG_CONTAINER")) {
		return true, "DOC2IMG_CONTAINER"
	}
	if d.statFile("/.dockerenv") == nil {
		return true, "/.dockerenv"
	}
	if v := d.getenv("container"); v != "" {
		return true, "container=" + v
	}
	if d.getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the staging directory and reports capacity.
func (d *doctor) checkSystem(result *doctorResult) {
	result.System.MaxContexts = doc2img.ResolveConcurrency(0)
	result.System.Extensions = doc2img.SupportedExtensions()

	_, cleanup, err := fileutil.WriteTempFile(d.tempDir, []byte("doctor"), "check")
	if err != nil {
		dir := d.tempDir
		if dir == "" {
			dir = os.TempDir()
		}
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %s", dir))
		return
	}
	_ = cleanup()
	result.System.TempWritable = true
}

// chromeVersion runs `<bin> --version`.
func chromeVersion(ctx context.Context, bin string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "--version").Output() // #nosec G204 -- bin is the configured browser
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "doc2img doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Browser.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Browser.Path)
		if r.Browser.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Browser.Version)
		}
		if r.Browser.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled")
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintf(w, "  [OK] Render contexts: %d\n", r.System.MaxContexts)
	fmt.Fprintf(w, "  [OK] Formats: %s\n", strings.Join(r.System.Extensions, " "))
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to convert")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
