package main

// Notes:
// - The converter is faked; these tests cover input discovery, image
//   naming, reporting and exit codes, not rendering.
// - End-to-end cases go through run() so flag parsing and exit code
//   mapping are exercised together.

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/alnah/go-doc2img"
)

// ---------------------------------------------------------------------------
// TestCollectInputs
// ---------------------------------------------------------------------------

func TestCollectInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "in/a.csv", "x")
	b := writeFile(t, dir, "in/sub/b.xlsx", "x")
	writeFile(t, dir, "in/readme.md", "x")
	loose := writeFile(t, dir, "notes.pdf", "x")

	t.Run("directory walk filters extensions", func(t *testing.T) {
		t.Parallel()

		out := filepath.Join(dir, "out")
		files, err := collectInputs([]string{filepath.Join(dir, "in")}, out)
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 2 {
			t.Fatalf("files = %+v, want 2", files)
		}
		if files[0].Path != a || files[0].OutDir != out {
			t.Errorf("files[0] = %+v", files[0])
		}
		if files[1].Path != b || files[1].OutDir != filepath.Join(out, "sub") {
			t.Errorf("files[1] = %+v", files[1])
		}
	})

	t.Run("explicit file kept whatever its extension", func(t *testing.T) {
		t.Parallel()

		files, err := collectInputs([]string{loose, loose}, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 || files[0].OutDir != dir {
			t.Errorf("files = %+v", files)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		t.Parallel()

		if _, err := collectInputs([]string{filepath.Join(dir, "nope.csv")}, ""); !os.IsNotExist(err) {
			t.Errorf("error = %v, want not exist", err)
		}
	})
}

// ---------------------------------------------------------------------------
// TestWriteImages
// ---------------------------------------------------------------------------

func TestWriteImages(t *testing.T) {
	t.Parallel()

	t.Run("single page uses base name", func(t *testing.T) {
		t.Parallel()

		out := filepath.Join(t.TempDir(), "nested", "out")
		res := &doc2img.Result{Total: 1, Images: []doc2img.Image{{Name: "data.csv", PNG: []byte("p")}}}
		paths, err := writeImages(inputFile{Path: "/src/data.csv", OutDir: out}, res)
		if err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(out, "data.png")
		if len(paths) != 1 || paths[0] != want {
			t.Fatalf("paths = %v, want [%s]", paths, want)
		}
		if got, _ := os.ReadFile(want); string(got) != "p" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("sheets get suffixes", func(t *testing.T) {
		t.Parallel()

		out := t.TempDir()
		res := &doc2img.Result{Total: 3, Images: []doc2img.Image{
			{Name: "Q1 / Sales", Index: 0, PNG: []byte("1")},
			{Name: "Q1 ? Sales", Index: 1, PNG: []byte("2")},
			{Name: "汇总", Index: 2, PNG: []byte("3")},
		}}
		paths, err := writeImages(inputFile{Path: "book.xlsx", OutDir: out}, res)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{
			filepath.Join(out, "book-Q1___Sales.png"),
			filepath.Join(out, "book-Q1___Sales-2.png"),
			filepath.Join(out, "book-汇总.png"),
		}
		if !slices.Equal(paths, want) {
			t.Errorf("paths = %v, want %v", paths, want)
		}
	})

	t.Run("unwritable directory", func(t *testing.T) {
		t.Parallel()

		blocker := writeFile(t, t.TempDir(), "file", "x")
		res := &doc2img.Result{Total: 1, Images: []doc2img.Image{{PNG: []byte("p")}}}
		_, err := writeImages(inputFile{Path: "a.csv", OutDir: filepath.Join(blocker, "sub")}, res)
		if exitCodeFor(err) != ExitIO {
			t.Errorf("error = %v, want an I/O exit code", err)
		}
	})
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Sheet1", "Sheet1"},
		{"My Sheet", "My_Sheet"},
		{"../etc", "_etc"},
		{"a\\b:c", "a_b_c"},
		{"...", "sheet"},
		{"  ", "sheet"},
		{"数据-2024", "数据-2024"},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestRunConvert - End to end through run()
// ---------------------------------------------------------------------------

func TestRunConvert(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "data.csv", "a,b")
		out := filepath.Join(dir, "out")
		conv := &fakeConverter{}
		env, stdout, _ := testEnv(conv, nil)

		code := run(context.Background(), []string{"convert", in, "-o", out}, env)

		if code != ExitSuccess {
			t.Fatalf("exit = %d, want 0", code)
		}
		if got, _ := os.ReadFile(filepath.Join(out, "data.png")); string(got) != "PNG:a,b" {
			t.Errorf("image = %q", got)
		}
		if !strings.Contains(stdout.String(), "converted 1/1 images") {
			t.Errorf("stdout = %q", stdout.String())
		}
		if !conv.closed {
			t.Error("converter not closed")
		}
		if conv.requests[0].Name != "data.csv" {
			t.Errorf("request name = %q", conv.requests[0].Name)
		}
	})

	t.Run("forced format", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "data.log", "text")
		conv := &fakeConverter{}
		env, _, _ := testEnv(conv, nil)

		code := run(context.Background(), []string{"convert", in, "--format", "plain-text"}, env)

		if code != ExitSuccess {
			t.Fatalf("exit = %d, want 0", code)
		}
		if conv.requests[0].Format != doc2img.FormatText {
			t.Errorf("Format = %q", conv.requests[0].Format)
		}
	})

	t.Run("partial", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "book.xlsx", "x")
		conv := &fakeConverter{results: map[string]func([]byte) (*doc2img.Result, error){
			"book.xlsx": sheets(2, "One"),
		}}
		env, stdout, stderr := testEnv(conv, nil)

		code := run(context.Background(), []string{"convert", in}, env)

		if code != ExitPartial {
			t.Fatalf("exit = %d, want %d", code, ExitPartial)
		}
		if !strings.Contains(stdout.String(), "converted 1/2 images") {
			t.Errorf("stdout = %q", stdout.String())
		}
		if !strings.Contains(stderr.String(), "[Sheet2]") {
			t.Errorf("stderr = %q, want failed sheet", stderr.String())
		}
		if _, err := os.Stat(filepath.Join(dir, "book-One.png")); err != nil {
			t.Errorf("image not written: %v", err)
		}
	})

	t.Run("one of two files fails", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		good := writeFile(t, dir, "good.csv", "a")
		bad := writeFile(t, dir, "bad.csv", "a")
		conv := &fakeConverter{results: map[string]func([]byte) (*doc2img.Result, error){
			"bad.csv": failed(doc2img.ErrParse),
		}}
		env, stdout, stderr := testEnv(conv, nil)

		code := run(context.Background(), []string{"convert", good, bad}, env)

		if code != ExitPartial {
			t.Errorf("exit = %d, want %d", code, ExitPartial)
		}
		if !strings.Contains(stderr.String(), "FAILED "+bad) {
			t.Errorf("stderr = %q", stderr.String())
		}
		if !strings.Contains(stdout.String(), "1 succeeded, 1 failed") {
			t.Errorf("stdout = %q", stdout.String())
		}
	})

	t.Run("quiet prints nothing on success", func(t *testing.T) {
		t.Parallel()

		in := writeFile(t, t.TempDir(), "data.csv", "a")
		env, stdout, _ := testEnv(&fakeConverter{}, nil)

		if code := run(context.Background(), []string{"-q", "convert", in}, env); code != ExitSuccess {
			t.Fatalf("exit = %d", code)
		}
		if stdout.Len() != 0 {
			t.Errorf("stdout = %q, want empty", stdout.String())
		}
	})

	t.Run("verbose lists outputs", func(t *testing.T) {
		t.Parallel()

		in := writeFile(t, t.TempDir(), "data.csv", "a")
		env, stdout, _ := testEnv(&fakeConverter{}, nil)

		if code := run(context.Background(), []string{"convert", "-v", in}, env); code != ExitSuccess {
			t.Fatalf("exit = %d", code)
		}
		if !strings.Contains(stdout.String(), "-> ") {
			t.Errorf("stdout = %q, want output paths", stdout.String())
		}
	})

	t.Run("output dir from env", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		in := writeFile(t, dir, "data.csv", "a")
		out := filepath.Join(dir, "env-out")
		env, _, _ := testEnv(&fakeConverter{}, map[string]string{"DOC2IMG_OUTPUT_DIR": out})

		if code := run(context.Background(), []string{"convert", in}, env); code != ExitSuccess {
			t.Fatalf("exit = %d", code)
		}
		if _, err := os.Stat(filepath.Join(out, "data.png")); err != nil {
			t.Errorf("image not in env output dir: %v", err)
		}
	})
}

func TestRunConvert_ExitCodes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csv := writeFile(t, dir, "data.csv", "a")

	tests := []struct {
		name     string
		args     []string
		results  map[string]func([]byte) (*doc2img.Result, error)
		want     int
		wantHint string
	}{
		{name: "no args", args: []string{"convert"}, want: ExitUsage},
		{name: "unknown flag", args: []string{"convert", "--bogus", csv}, want: ExitUsage},
		{name: "invalid workers", args: []string{"convert", "-w", "99", csv}, want: ExitUsage},
		{name: "invalid format flag", args: []string{"convert", "--format", "pptx", csv}, want: ExitUsage},
		{name: "invalid capture format", args: []string{"convert", "--capture-format", "gif", csv}, want: ExitUsage},
		{name: "invalid log level", args: []string{"--log-level", "loud", "convert", csv}, want: ExitUsage},
		{name: "missing input", args: []string{"convert", filepath.Join(dir, "nope.csv")}, want: ExitIO},
		{
			name:     "unsupported",
			args:     []string{"convert", csv},
			results:  map[string]func([]byte) (*doc2img.Result, error){"data.csv": failed(doc2img.ErrUnsupportedFormat)},
			want:     ExitUsage,
			wantHint: "--format tabular-workbook",
		},
		{
			name:     "engine crash",
			args:     []string{"convert", csv},
			results:  map[string]func([]byte) (*doc2img.Result, error){"data.csv": failed(doc2img.ErrEngineCrashed)},
			want:     ExitBrowser,
			wantHint: "doctor",
		},
		{
			name:     "timeout",
			args:     []string{"convert", csv},
			results:  map[string]func([]byte) (*doc2img.Result, error){"data.csv": failed(doc2img.ErrRenderTimeout)},
			want:     ExitBrowser,
			wantHint: "--timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, _, stderr := testEnv(&fakeConverter{results: tt.results}, nil)
			code := run(context.Background(), tt.args, env)

			if code != tt.want {
				t.Errorf("exit = %d, want %d (stderr: %s)", code, tt.want, stderr.String())
			}
			if tt.wantHint != "" && !strings.Contains(stderr.String(), tt.wantHint) {
				t.Errorf("stderr = %q, want hint containing %q", stderr.String(), tt.wantHint)
			}
			if n := strings.Count(stderr.String(), "supported files"); n > 1 {
				t.Errorf("stderr lists supported files %d times: %q", n, stderr.String())
			}
		})
	}
}

func TestConvertBatch_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv := &fakeConverter{}
	results := convertBatch(ctx, conv, []inputFile{{Path: "a.csv"}, {Path: "b.csv"}}, "", 1)

	for _, r := range results {
		if r.Err == nil {
			t.Errorf("%s: Err = nil, want context error", r.Input)
		}
	}
	if len(conv.requests) != 0 {
		t.Errorf("converter called %d times after cancel", len(conv.requests))
	}
}
