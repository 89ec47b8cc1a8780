package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/alnah/go-doc2img"
)

// Converter is the part of *doc2img.Converter the commands use.
type Converter interface {
	Convert(ctx context.Context, req doc2img.Request) (*doc2img.Result, error)
	Warmup(ctx context.Context) error
	Close() error
}

// Compile-time interface implementation check.
var _ Converter = (*doc2img.Converter)(nil)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now          func() time.Time
	Stdout       io.Writer
	Stderr       io.Writer
	Getenv       func(string) string
	Environ      func() []string
	NewConverter func(opts ...doc2img.Option) (Converter, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:     time.Now,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		Environ: os.Environ,
		NewConverter: func(opts ...doc2img.Option) (Converter, error) {
			return doc2img.NewConverter(opts...)
		},
	}
}
