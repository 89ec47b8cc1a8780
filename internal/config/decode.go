package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// MaxInputSize limits config input to prevent memory exhaustion (1MB).
const MaxInputSize = 1 << 20

var (
	ErrEmptyInput    = errors.New("config: empty input")
	ErrInputTooLarge = errors.New("config: input exceeds maximum size")
	ErrUnknownSyntax = errors.New("config: unknown file syntax")
)

// Syntax identifies the config file language.
type Syntax string

// Supported syntaxes.
const (
	SyntaxYAML Syntax = "yaml"
	SyntaxTOML Syntax = "toml"
)

// SyntaxFor returns the syntax implied by a file extension.
func SyntaxFor(path string) (Syntax, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return SyntaxYAML, nil
	case strings.HasSuffix(lower, ".toml"):
		return SyntaxTOML, nil
	}
	return "", fmt.Errorf("%w: %s (want .yaml, .yml or .toml)", ErrUnknownSyntax, path)
}

// Decode strictly decodes data into v: unknown keys are rejected.
func Decode(data []byte, syntax Syntax, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyInput
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}

	switch syntax {
	case SyntaxYAML:
		if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
			return fmt.Errorf("yaml: %w", err)
		}
	case SyntaxTOML:
		md, err := toml.Decode(string(data), v)
		if err != nil {
			return fmt.Errorf("toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("toml: unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSyntax, syntax)
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("30s", "1m").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
