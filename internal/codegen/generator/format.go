package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrUnknownFormatter = errors.New("unknown formatter")

// Formatter rewrites generated files in place.
type Formatter interface {
	Name() string
	Format(ctx context.Context, paths []string) error
}

// NoFormatter leaves files as rendered.
type NoFormatter struct{}

func (NoFormatter) Name() string { return "none" }
func (NoFormatter) Format(context.Context, []string) error { return nil }

// ClangFormat runs clang-format -i over all files in one invocation.
type ClangFormat struct {
	Binary string
	Style  string
}

func (c ClangFormat) Name() string { return "clang-format" }

func (c ClangFormat) Format(ctx context.Context, paths []string) error {
	args := append([]string{"-i", "-style=" + c.Style}, paths...)
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Binary, err, msg)
		}
		return fmt.Errorf("%s: %w", c.Binary, err)
	}
	return nil
}

// NewFormatter returns the formatter called name. binary overrides the
// clang-format executable when non-empty.
func NewFormatter(name, binary string) (Formatter, error) {
	switch name {
	case "", "none":
		return NoFormatter{}, nil
	case "clang-format":
		if binary == "" {
			binary = "clang-format"
		}
		return ClangFormat{Binary: binary, Style: "Chromium"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormatter, name)
	}
}
