package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-doc2img"
)

// fakeConverter returns canned results keyed by request name.
// Unknown names produce one image.
type fakeConverter struct {
	mu       sync.Mutex
	results  map[string]func(data []byte) (*doc2img.Result, error)
	requests []doc2img.Request
	warmErr  error
	warmed   bool
	closed   bool
}

func (f *fakeConverter) Convert(ctx context.Context, req doc2img.Request) (*doc2img.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.results[req.Name]
	f.mu.Unlock()

	rc, err := req.Source(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", doc2img.ErrDownload, err)
		return &doc2img.Result{Name: req.Name, State: doc2img.StateFailed, Err: err}, err
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()

	if fn != nil {
		return fn(data)
	}
	return &doc2img.Result{
		Name:   req.Name,
		State:  doc2img.StateCompleted,
		Total:  1,
		Images: []doc2img.Image{{Name: req.Name, PNG: append([]byte("PNG:"), data...)}},
	}, nil
}

func (f *fakeConverter) Warmup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmed = true
	return f.warmErr
}

func (f *fakeConverter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func failed(err error) func([]byte) (*doc2img.Result, error) {
	return func([]byte) (*doc2img.Result, error) {
		return &doc2img.Result{State: doc2img.StateFailed, Err: err}, err
	}
}

func sheets(total int, names ...string) func([]byte) (*doc2img.Result, error) {
	return func([]byte) (*doc2img.Result, error) {
		res := &doc2img.Result{State: doc2img.StateCompleted, Total: total}
		for i, n := range names {
			res.Images = append(res.Images, doc2img.Image{Name: n, Index: i, PNG: []byte(n)})
		}
		for i := len(names); i < total; i++ {
			res.Failures = append(res.Failures, doc2img.Failure{
				Name:  fmt.Sprintf("Sheet%d", i+1),
				Index: i,
				Err:   doc2img.ErrRenderTimeout,
			})
		}
		return res, nil
	}
}

// testEnv returns an environment with captured output, a fixed environment
// map and conv as the converter factory.
func testEnv(conv Converter, vars map[string]string) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &Environment{
		Now:    func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC) },
		Stdout: stdout,
		Stderr: stderr,
		Getenv: func(k string) string { return vars[k] },
		Environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
		NewConverter: func(...doc2img.Option) (Converter, error) {
			if conv == nil {
				return nil, errors.New("no converter")
			}
			return conv, nil
		},
	}, stdout, stderr
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
