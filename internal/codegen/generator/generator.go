package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	cgen "github.com/Alia5/tpm2gen/internal/codegen/generator/c"
	"github.com/Alia5/tpm2gen/internal/codegen/common"
	"github.com/Alia5/tpm2gen/internal/codegen/grammar"
	"github.com/Alia5/tpm2gen/internal/codegen/meta"
	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/codegen/typemap"
	"github.com/Alia5/tpm2gen/internal/metrics"
)

type Generator struct {
	outputDir string
	logger    *slog.Logger
	formatter Formatter
	metrics   *metrics.Metrics
	jobs      int
}

// LanguageGenerator renders md and writes the files into outputDir.
type LanguageGenerator func(ctx context.Context, logger *slog.Logger, outputDir string, md *meta.Metadata) ([]meta.Artifact, error)

// Renderer renders md in memory.
type Renderer func(ctx context.Context, logger *slog.Logger, md *meta.Metadata) ([]meta.Artifact, error)

type language struct {
	generate LanguageGenerator
	render   Renderer
}

var generators = map[string]language{
	"c": {generate: cgen.Generate, render: cgen.Render},
}

// Languages lists the registered target languages.
func Languages() []string {
	langs := make([]string, 0, len(generators))
	for k := range generators {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

type Option func(*Generator)

// WithJobs limits concurrent per-command rendering.
func WithJobs(n int) Option { return func(g *Generator) { g.jobs = n } }

// WithFormatter runs f over every written file.
func WithFormatter(f Formatter) Option { return func(g *Generator) { g.formatter = f } }

// WithMetrics records into m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option { return func(g *Generator) { g.metrics = m } }

func New(outputDir string, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		outputDir: outputDir,
		logger:    logger,
		formatter: NoFormatter{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New()
	}
	return g
}

func (g *Generator) Metrics() *metrics.Metrics { return g.metrics }

// Load parses the grammar, merges typesPath (if any) over the built-in type
// table and plans every command. Commands that cannot be planned are logged
// and left out. On a grammar error the commands parsed before it are still
// planned: Load returns that Metadata together with the error, which is also
// kept in Metadata.ParseErr.
func (g *Generator) Load(grammarPath, typesPath string) (*meta.Metadata, error) {
	start := time.Now()
	defer g.metrics.ObserveStage("load", start)

	src, err := os.ReadFile(grammarPath)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}

	g.logger.Info("Parsing command grammar", "file", grammarPath)
	var parseErr error
	cmds, err := grammar.NewParser(g.logger).Parse(bytes.NewReader(src))
	if err != nil {
		g.metrics.ParseErrors.Inc()
		parseErr = fmt.Errorf("%s: %w", grammarPath, err)
		var pe *grammar.ParseError
		if !errors.As(err, &pe) {
			return nil, parseErr
		}
	}
	g.metrics.CommandsParsed.Set(float64(len(cmds)))
	g.logger.Info("Parsed commands", "count", len(cmds))

	types, err := typemap.Default()
	if err != nil {
		return nil, err
	}
	var typesSrc []byte
	if typesPath != "" {
		if typesSrc, err = os.ReadFile(typesPath); err != nil {
			return nil, fmt.Errorf("read type table: %w", err)
		}
		extra, err := typemap.Parse(typesSrc, strings.TrimPrefix(filepath.Ext(typesPath), "."))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typesPath, err)
		}
		types.Merge(extra)
		g.logger.Info("Merged type table", "file", typesPath, "types", extra.Len())
	}

	plans, err := plan.BuildAll(cmds, types)
	for _, e := range unjoin(err) {
		reason := "unknown-type"
		if errors.Is(e, typemap.ErrNoSelector) {
			reason = "needs-selector"
		}
		g.metrics.CommandsSkipped.WithLabelValues(reason).Inc()
		g.logger.Warn("Skipping command", "error", e)
	}
	g.metrics.CommandsPlanned.Set(float64(len(plans)))

	version, err := common.GetVersion()
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}

	return &meta.Metadata{
		Commands: cmds,
		Plans:    plans,
		Types:    types,
		Stamp:    common.Stamp{Version: version, Digest: common.Digest(src, typesSrc)},
		Jobs:     g.jobs,
		ParseErr: parseErr,
	}, parseErr
}

func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func (g *Generator) GenAll(ctx context.Context, md *meta.Metadata) error {
	for _, lang := range Languages() {
		if err := g.GenerateLang(ctx, lang, md); err != nil {
			return fmt.Errorf("generate %s sources: %w", lang, err)
		}
	}
	return nil
}

func (g *Generator) lookup(lang string) (language, error) {
	l, ok := generators[lang]
	if !ok {
		return language{}, fmt.Errorf("unsupported language '%s' (supported: %v)", lang, Languages())
	}
	return l, nil
}

// OutputPath is where lang's files are written.
func (g *Generator) OutputPath(lang string) string {
	return filepath.Join(g.outputDir, lang)
}

func (g *Generator) GenerateLang(ctx context.Context, lang string, md *meta.Metadata) error {
	l, err := g.lookup(lang)
	if err != nil {
		return err
	}

	g.logger.Info("Generating sources", "language", lang, "commands", len(md.Plans))
	start := time.Now()

	outputPath := g.OutputPath(lang)
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create %s output directory: %w", lang, err)
	}

	artifacts, err := l.generate(ctx, g.logger, outputPath, md)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		g.metrics.ArtifactsWritten.WithLabelValues(lang, a.Kind).Inc()
		g.metrics.ArtifactBytes.WithLabelValues(lang, a.Kind).Add(float64(len(a.Data)))
		paths = append(paths, filepath.Join(outputPath, a.Name))
	}
	g.metrics.ObserveStage("render", start)

	if err := g.format(ctx, paths); err != nil {
		return err
	}

	g.metrics.MarkSuccess()
	g.logger.Info("Source generation complete", "language", lang, "output", outputPath)
	return nil
}

func (g *Generator) format(ctx context.Context, paths []string) error {
	if _, ok := g.formatter.(NoFormatter); ok || len(paths) == 0 {
		return nil
	}
	defer g.metrics.ObserveStage("format", time.Now())

	g.logger.Info("Formatting generated files", "formatter", g.formatter.Name(), "files", len(paths))
	if err := g.formatter.Format(ctx, paths); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.metrics.FormatterFailures.Inc()
		g.logger.Warn("Formatter failed, leaving files unformatted", "formatter", g.formatter.Name(), "error", err)
	}
	return nil
}

// Drift describes a generated file that does not match the current inputs.
type Drift struct {
	File   string
	Reason string
}

// Drift reasons.
const (
	DriftMissing   = "missing"
	DriftUnstamped = "unstamped"
	DriftStale     = "stale"
)

// Check compares the files lang would write against the output directory
// using the stamp in each file, so formatting does not count as drift.
func (g *Generator) Check(ctx context.Context, lang string, md *meta.Metadata) ([]Drift, error) {
	l, err := g.lookup(lang)
	if err != nil {
		return nil, err
	}
	artifacts, err := l.render(ctx, g.logger, md)
	if err != nil {
		return nil, err
	}

	var drift []Drift
	for _, a := range artifacts {
		path := filepath.Join(g.OutputPath(lang), a.Name)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			drift = append(drift, Drift{File: path, Reason: DriftMissing})
			continue
		case err != nil:
			return nil, err
		}
		stamp, err := common.ReadStamp(data)
		switch {
		case err != nil:
			drift = append(drift, Drift{File: path, Reason: DriftUnstamped})
		case stamp.Digest != md.Stamp.Digest:
			drift = append(drift, Drift{File: path, Reason: DriftStale})
		default:
			g.logger.Debug("Up to date", "file", path, "generator", stamp.Version)
		}
	}
	return drift, nil
}
