package cgen

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"golang.org/x/sync/errgroup"

	"github.com/Alia5/tpm2gen/internal/codegen/common"
	"github.com/Alia5/tpm2gen/internal/codegen/meta"
	"github.com/Alia5/tpm2gen/internal/codegen/plan"
	"github.com/Alia5/tpm2gen/internal/log"
)

// Aggregate file names.
const (
	DispatcherFile              = "CommandDispatcher.c"
	HandleProcessFile           = "HandleProcess.c"
	CommandCodeStringHeaderFile = "GetCommandCodeString_fp.h"
	CommandCodeStringFile       = "GetCommandCodeString.c"
)

// HeaderFile and MarshalFile name the per-command artifacts.
func HeaderFile(method string) string  { return method + "_fp.h" }
func MarshalFile(method string) string { return "Marshal_" + method + ".c" }

type templates struct {
	header, source                         *template.Template
	dispatcher, handleProcess              *template.Template
	commandCodeStringH, commandCodeStringC *template.Template
}

func parseTemplates() templates {
	parse := func(name, text string) *template.Template {
		return template.Must(template.New(name).Funcs(tplFuncs()).Parse(text))
	}
	return templates{
		header:             parse("command_fp.h", commandHeaderTmpl),
		source:             parse("Marshal_command.c", commandSourceTmpl),
		dispatcher:         parse(DispatcherFile, dispatcherTmpl),
		handleProcess:      parse(HandleProcessFile, handleProcessTmpl),
		commandCodeStringH: parse(CommandCodeStringHeaderFile, commandCodeStringHeaderTmpl),
		commandCodeStringC: parse(CommandCodeStringFile, commandCodeStringTmpl),
	}
}

type commandData struct {
	*plan.Command
	Header string
}

type aggregateData struct {
	Plans  []*plan.Command
	Header string
}

func execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("exec %s tmpl: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

// Render produces every C artifact in memory: two per command in plan order,
// then the four aggregates. The order does not depend on md.Jobs.
func Render(ctx context.Context, logger *slog.Logger, md *meta.Metadata) ([]meta.Artifact, error) {
	tmpls := parseTemplates()
	header := common.FileHeader(md.Stamp)

	perCommand := make([][2]meta.Artifact, len(md.Plans))
	g, ctx := errgroup.WithContext(ctx)
	if md.Jobs > 0 {
		g.SetLimit(md.Jobs)
	}
	for i, p := range md.Plans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := commandData{Command: p, Header: header}
			h, err := execute(tmpls.header, data)
			if err != nil {
				return fmt.Errorf("command %s: %w", p.Name, err)
			}
			src, err := execute(tmpls.source, data)
			if err != nil {
				return fmt.Errorf("command %s: %w", p.Name, err)
			}
			perCommand[i] = [2]meta.Artifact{
				{Name: HeaderFile(p.Method), Kind: meta.KindHeader, Data: h},
				{Name: MarshalFile(p.Method), Kind: meta.KindMarshal, Data: src},
			}
			logger.Log(ctx, log.LevelTrace, "Rendered command", "command", p.Name, "shape", p.Shape)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	artifacts := make([]meta.Artifact, 0, 2*len(md.Plans)+4)
	for _, pair := range perCommand {
		artifacts = append(artifacts, pair[0], pair[1])
	}

	agg := aggregateData{Plans: md.Plans, Header: header}
	for _, a := range []struct {
		t    *template.Template
		name string
		kind string
	}{
		{tmpls.dispatcher, DispatcherFile, meta.KindDispatcher},
		{tmpls.handleProcess, HandleProcessFile, meta.KindHandleProcess},
		{tmpls.commandCodeStringH, CommandCodeStringHeaderFile, meta.KindCommandCodeString},
		{tmpls.commandCodeStringC, CommandCodeStringFile, meta.KindCommandCodeString},
	} {
		data, err := execute(a.t, agg)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, meta.Artifact{Name: a.name, Kind: a.kind, Data: data})
	}
	return artifacts, nil
}

// Generate renders all artifacts and writes them flat into outputDir.
func Generate(ctx context.Context, logger *slog.Logger, outputDir string, md *meta.Metadata) ([]meta.Artifact, error) {
	major, minor, patch := common.ParseVersion(md.Stamp.Version)
	logger.Info("Using version", "version", md.Stamp.Version, "major", major, "minor", minor, "patch", patch)

	artifacts, err := Render(ctx, logger, md)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		out := filepath.Join(outputDir, a.Name)
		if err := os.WriteFile(out, a.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", a.Name, err)
		}
		logger.Debug("Generated file", "kind", a.Kind, "file", out)
	}
	logger.Info("Generated C sources", "dir", outputDir, "commands", len(md.Plans), "files", len(artifacts))
	return artifacts, nil
}
