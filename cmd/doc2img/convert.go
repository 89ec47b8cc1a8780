package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-doc2img"
	"github.com/alnah/go-doc2img/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrWriteImage         = errors.New("failed to write image")
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// errPartial marks a run where some images could not be produced.
	errPartial = errors.New("some images could not be produced")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// reportedError wraps an error already printed per file.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// inputFile is one document to convert and where its images go.
type inputFile struct {
	Path   string
	OutDir string
}

// fileResult holds the outcome of converting one input file.
type fileResult struct {
	Input    string
	Result   *doc2img.Result
	Outputs  []string
	Err      error
	Duration time.Duration
}

// runConvert converts every input and writes the images.
func runConvert(ctx context.Context, args []string, f *convertFlags, common *commonFlags, env *Environment) error {
	if f.workers < 0 || f.workers > doc2img.MaxConcurrency {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidWorkerCount, f.workers, doc2img.MaxConcurrency)
	}

	format := doc2img.Format(f.format)
	if format != "" && !format.Valid() {
		return fmt.Errorf("%w: --format %q", doc2img.ErrUnsupportedFormat, f.format)
	}

	cfg, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	mergeEngineFlags(&f.engine, cfg)
	if f.output != "" {
		cfg.Output.DefaultDir = f.output
	}

	logger, err := newLogger(env.Stderr, common, cfg.Log.Level)
	if err != nil {
		return err
	}

	files, err := collectInputs(args, cfg.Output.DefaultDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoInput
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

	workers := doc2img.ResolveConcurrency(f.workers)
	logger.Debug("converting", "files", len(files), "workers", workers)

	results := convertBatch(ctx, conv, files, format, workers)
	return reportResults(results, common, env, cfg.Input.MaxBytes)
}

// collectInputs expands args into input files. Directories are walked for
// supported extensions; explicit files are kept whatever their extension so
// the converter can report them. outputDir "" writes next to each input.
func collectInputs(args []string, outputDir string) ([]inputFile, error) {
	var files []inputFile
	seen := make(map[string]bool)

	add := func(path, outDir string) {
		if seen[path] {
			return
		}
		seen[path] = true
		files = append(files, inputFile{Path: path, OutDir: outDir})
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			add(arg, resolveOutDir(arg, outputDir, ""))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("scanning %s: %w", path, err)
			}
			if d.IsDir() {
				return nil
			}
			if _, err := doc2img.DetectFormat(path); err != nil {
				return nil
			}
			add(path, resolveOutDir(path, outputDir, arg))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// resolveOutDir returns the directory images of path are written to.
// Files found under baseDir keep their relative location below outputDir.
func resolveOutDir(path, outputDir, baseDir string) string {
	if outputDir == "" {
		return filepath.Dir(path)
	}
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, filepath.Dir(path)); err == nil {
			return filepath.Join(outputDir, rel)
		}
	}
	return outputDir
}

// convertBatch converts files with at most workers running at once.
// Results keep the input order.
func convertBatch(ctx context.Context, conv Converter, files []inputFile, format doc2img.Format, workers int) []fileResult {
	results := make([]fileResult, len(files))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = fileResult{Input: f.Path, Err: ctx.Err()}
				return nil
			}
			results[i] = convertFile(ctx, conv, f, format)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// convertFile converts one file and writes its images.
func convertFile(ctx context.Context, conv Converter, f inputFile, format doc2img.Format) fileResult {
	start := time.Now()
	out := fileResult{Input: f.Path}

	res, err := conv.Convert(ctx, doc2img.Request{
		Name:   filepath.Base(f.Path),
		Format: format,
		Source: doc2img.FileSource(f.Path),
	})
	out.Result = res
	if err != nil {
		out.Err = err
		out.Duration = time.Since(start)
		return out
	}

	out.Outputs, out.Err = writeImages(f, res)
	out.Duration = time.Since(start)
	return out
}

// writeImages writes every image of res as <base>[-<sheet>].png.
// The sheet suffix is used when the document produced more than one page.
func writeImages(f inputFile, res *doc2img.Result) ([]string, error) {
	if err := os.MkdirAll(f.OutDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v%s", ErrWriteImage, f.OutDir, err, hints.ForOutputDirectory())
	}

	base := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
	used := make(map[string]bool, len(res.Images))
	paths := make([]string, 0, len(res.Images))

	for _, img := range res.Images {
		name := base
		if res.Total > 1 {
			name = base + "-" + sanitizeFileName(img.Name)
		}
		if used[strings.ToLower(name)] {
			name = fmt.Sprintf("%s-%d", name, img.Index+1)
		}
		used[strings.ToLower(name)] = true

		path := filepath.Join(f.OutDir, name+".png")
		if err := os.WriteFile(path, img.PNG, filePermissions); err != nil {
			return paths, fmt.Errorf("%w: %s: %v", ErrWriteImage, path, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// sanitizeFileName keeps letters, digits, dot, dash and underscore;
// everything else becomes an underscore.
func sanitizeFileName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		return "sheet"
	}
	return name
}

// reportResults prints one line per input and returns the error deciding
// the exit code: nil when everything converted, the first failure when
// nothing did, errPartial otherwise.
func reportResults(results []fileResult, common *commonFlags, env *Environment, maxBytes int64) error {
	var firstErr error
	var produced, incomplete int

	for _, r := range results {
		if len(r.Outputs) == 0 {
			fmt.Fprintf(env.Stderr, "FAILED %s: %s%s\n", r.Input, describeError(r.Err), hintFor(r.Err, maxBytes))
			if firstErr == nil {
				firstErr = r.Err
			}
			incomplete++
			continue
		}

		produced++
		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s: %s\n", r.Input, describeError(r.Err))
			incomplete++
		}
		if r.Result.Partial() {
			incomplete++
			for _, fail := range r.Result.Failures {
				fmt.Fprintf(env.Stderr, "FAILED %s [%s]: %s\n", r.Input, fail.Name, doc2img.UserMessage(fail.Err))
			}
		}

		if common.quiet {
			continue
		}
		fmt.Fprintf(env.Stdout, "%s: %s\n", r.Input, r.Result.Summary())
		if common.verbose {
			for _, p := range r.Outputs {
				fmt.Fprintf(env.Stdout, "  -> %s\n", p)
			}
			fmt.Fprintf(env.Stdout, "  took %v\n", r.Duration.Round(time.Millisecond))
		}
	}

	if !common.quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", produced, len(results)-produced)
	}

	switch {
	case incomplete == 0:
		return nil
	case produced == 0:
		return &reportedError{err: firstErr}
	default:
		return errPartial
	}
}

// describeError prefers the library's user message for conversion errors.
func describeError(err error) string {
	if errors.Is(err, ErrWriteImage) {
		return err.Error()
	}
	if kind := doc2img.KindOf(err); kind != doc2img.KindInternal {
		return doc2img.UserMessage(err)
	}
	return err.Error()
}

// hintFor returns an actionable hint for err, if any.
func hintFor(err error, maxBytes int64) string {
	switch doc2img.KindOf(err) {
	case doc2img.KindUnsupportedFormat:
		return hints.ForUnsupportedFormat([]string{
			string(doc2img.FormatWorkbook),
			string(doc2img.FormatDelimited),
			string(doc2img.FormatText),
		})
	case doc2img.KindTooLarge:
		if maxBytes <= 0 {
			maxBytes = doc2img.DefaultMaxInputBytes
		}
		return hints.ForTooLarge(maxBytes)
	case doc2img.KindEngineCrashed:
		return hints.ForBrowserConnect()
	case doc2img.KindRenderTimeout:
		return hints.ForTimeout()
	default:
		return ""
	}
}
