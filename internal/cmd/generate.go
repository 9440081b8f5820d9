package cmd

import (
	"context"
	"log/slog"

	"github.com/Alia5/tpm2gen/internal/codegen/generator"
)

type Generate struct {
	Source `embed:""`

	Output      string `help:"Output directory; sources go to <output>/<lang>" default:"./generated" env:"TPM2GEN_OUTPUT"`
	Lang        string `help:"Target language, or 'all'" default:"c" enum:"c,all" env:"TPM2GEN_LANG"`
	Formatter   string `help:"Formatter run over written files" default:"none" enum:"none,clang-format" env:"TPM2GEN_FORMATTER"`
	ClangFormat string `help:"clang-format executable" default:"clang-format" env:"TPM2GEN_CLANG_FORMAT"`
	Jobs        int    `help:"Commands rendered concurrently (0 = unlimited)" default:"0" env:"TPM2GEN_JOBS"`
	MetricsFile string `help:"Write Prometheus metrics of this run to a textfile" env:"TPM2GEN_METRICS_FILE"`
}

// Run is called by Kong when the generate command is executed.
func (c *Generate) Run(ctx context.Context, logger *slog.Logger) error {
	logger.Info("Starting code generation", "grammar", c.Grammar, "output", c.Output, "lang", c.Lang)

	formatter, err := generator.NewFormatter(c.Formatter, c.ClangFormat)
	if err != nil {
		return err
	}
	gen := generator.New(c.Output, logger,
		generator.WithJobs(c.Jobs),
		generator.WithFormatter(formatter),
	)
	if c.MetricsFile != "" {
		defer func() {
			if werr := gen.Metrics().WriteFile(c.MetricsFile); werr != nil {
				logger.Warn("Failed to write metrics", "file", c.MetricsFile, "error", werr)
			}
		}()
	}

	md, err := c.load(gen, logger)
	if md == nil {
		return err
	}
	if c.Lang == "all" {
		err = gen.GenAll(ctx, md)
	} else {
		err = gen.GenerateLang(ctx, c.Lang, md)
	}
	if err != nil {
		return err
	}
	return md.ParseErr
}
