package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Alia5/tpm2gen/internal/codegen/generator"
)

var ErrOutOfDate = errors.New("generated sources are out of date")

type Check struct {
	Source `embed:""`

	Output string `help:"Directory previously passed to generate" default:"./generated" env:"TPM2GEN_OUTPUT"`
	Lang   string `help:"Target language" default:"c" enum:"c" env:"TPM2GEN_LANG"`
}

// Run is called by Kong when the check command is executed.
func (c *Check) Run(ctx context.Context, logger *slog.Logger) error {
	gen := generator.New(c.Output, logger)
	md, err := c.load(gen, logger)
	if md == nil {
		return err
	}

	drift, err := gen.Check(ctx, c.Lang, md)
	if err != nil {
		return err
	}
	for _, d := range drift {
		logger.Warn("Generated file out of date", "file", d.File, "reason", d.Reason)
	}
	if len(drift) > 0 {
		return fmt.Errorf("%w: %d files, run generate", ErrOutOfDate, len(drift))
	}
	logger.Info("Generated sources up to date", "dir", gen.OutputPath(c.Lang), "digest", md.Stamp.Digest)
	return md.ParseErr
}
