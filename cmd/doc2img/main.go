// Command doc2img converts spreadsheets and text files into PNG images.
//
//	doc2img convert book.xlsx notes.txt -o images/
//	doc2img serve --addr :8080
//	doc2img doctor
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS value,
	// in which case the runtime default applies.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	ctx, stop := notifyContext(context.Background())
	code := run(ctx, os.Args[1:], DefaultEnv())
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, env *Environment) int {
	root := newRootCmd(env)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var reported *reportedError
	if !errors.Is(err, errPartial) && !errors.Is(err, errDoctor) && !errors.As(err, &reported) {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
	}
	if isUsageError(err) {
		return ExitUsage
	}
	return exitCodeFor(err)
}

// usageError wraps flag and argument errors reported by cobra.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// isUsageError also catches cobra's unknown-command error, which has no type.
func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command")
}

// newRootCmd builds the command tree.
func newRootCmd(env *Environment) *cobra.Command {
	common := &commonFlags{}

	root := &cobra.Command{
		Use:   "doc2img",
		Short: "Render spreadsheets and text files as PNG images",
		Long: `doc2img renders workbooks (.xlsx, .xlsm, .xls), delimited text (.csv, .tsv)
and plain text (.txt) in a headless Chrome and captures one PNG per sheet.

Settings are resolved as flags > DOC2IMG_* environment > config file > defaults.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	addCommonFlags(root.PersistentFlags(), common)

	root.AddCommand(
		newConvertCmd(common, env),
		newServeCmd(common, env),
		newDoctorCmd(env),
		newVersionCmd(env),
	)
	return root
}

func newConvertCmd(common *commonFlags, env *Environment) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Convert documents to PNG images",
		Long: `Convert writes one PNG per sheet as <name>.png, or <name>-<sheet>.png when a
workbook has several sheets. Directories are searched for supported files.

Exit codes: 0 success, 1 error, 2 usage or unsupported input, 3 I/O,
4 browser, 5 some images could not be produced.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &usageError{err: ErrNoInput}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), args, f, common, env)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "output directory (default: next to each input)")
	fs.StringVarP(&f.format, "format", "f", "", "force the input format: tabular-workbook, delimited-text, plain-text")
	fs.IntVarP(&f.workers, "workers", "w", 0, "files converted at once (0 = auto)")
	addEngineFlags(fs, &f.engine)
	return cmd
}

func newServeCmd(common *commonFlags, env *Environment) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversions over HTTP",
		Long: `Serve starts the browser, then accepts multipart uploads on POST /v1/convert.
SIGINT or SIGTERM drains in-flight conversions before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f, common, env)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (default :8080)")
	addEngineFlags(fs, &f.engine)
	return cmd
}

func newDoctorCmd(env *Environment) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the browser and system setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), jsonOutput, env)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newVersionCmd(env *Environment) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			printVersion(env.Stdout)
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "doc2img %s\n", Version)
}
