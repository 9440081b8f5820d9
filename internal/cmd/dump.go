package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	toml "github.com/pelletier/go-toml"
	"golang.org/x/term"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/tpm2gen/internal/codegen/generator"
	"github.com/Alia5/tpm2gen/internal/codegen/meta"
	"github.com/Alia5/tpm2gen/internal/codegen/model"
	"github.com/Alia5/tpm2gen/internal/codegen/plan"
)

type Dump struct {
	Source `embed:""`

	Format string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Indent bool   `help:"Indent JSON output (default when stdout is a terminal)"`
}

type dumpDoc struct {
	Version  string        `json:"version" yaml:"version" toml:"version"`
	Digest   string        `json:"digest" yaml:"digest" toml:"digest"`
	Commands []dumpCommand `json:"commands" yaml:"commands" toml:"commands"`
}

type dumpCommand struct {
	Name            string           `json:"name" yaml:"name" toml:"name"`
	CommandCode     string           `json:"commandCode" yaml:"commandCode" toml:"commandCode"`
	Shape           string           `json:"shape" yaml:"shape" toml:"shape"`
	RequestHandles  int              `json:"requestHandles" yaml:"requestHandles" toml:"requestHandles"`
	ResponseHandles int              `json:"responseHandles" yaml:"responseHandles" toml:"responseHandles"`
	RequestArgs     []model.Argument `json:"requestArgs,omitempty" yaml:"requestArgs,omitempty" toml:"requestArgs,omitempty"`
	ResponseArgs    []model.Argument `json:"responseArgs,omitempty" yaml:"responseArgs,omitempty" toml:"responseArgs,omitempty"`
	Skipped         string           `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
}

// Run is called by Kong when the dump command is executed.
func (c *Dump) Run(logger *slog.Logger) error {
	gen := generator.New("", logger)
	md, err := c.load(gen, logger)
	if md == nil {
		return err
	}
	indent := c.Indent || term.IsTerminal(int(os.Stdout.Fd()))
	if err := c.write(os.Stdout, md, indent); err != nil {
		return err
	}
	return md.ParseErr
}

func (c *Dump) write(w io.Writer, md *meta.Metadata, indent bool) error {
	doc := buildDump(md)

	var data []byte
	var err error
	switch c.Format {
	case "json":
		if indent {
			data, err = json.MarshalIndent(doc, "", "  ")
		} else {
			data, err = json.Marshal(doc)
		}
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(doc)
	case "toml":
		data, err = toml.Marshal(doc)
	default:
		return fmt.Errorf("unsupported format: %s", c.Format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func buildDump(md *meta.Metadata) dumpDoc {
	planned := make(map[string]*plan.Command, len(md.Plans))
	for _, p := range md.Plans {
		planned[p.Name] = p
	}

	doc := dumpDoc{Version: md.Stamp.Version, Digest: md.Stamp.Digest}
	for _, cmd := range md.Commands {
		dc := dumpCommand{
			Name:            cmd.Name,
			CommandCode:     cmd.CommandCode,
			Shape:           plan.ShapeOf(cmd.HasRequest(), cmd.HasResponse()).String(),
			RequestHandles:  cmd.NumRequestHandles(),
			ResponseHandles: cmd.NumResponseHandles(),
			RequestArgs:     cmd.RequestArgs,
			ResponseArgs:    cmd.ResponseArgs,
		}
		if _, ok := planned[cmd.Name]; !ok {
			if _, err := plan.Build(cmd, md.Types); err != nil {
				dc.Skipped = err.Error()
			}
		}
		doc.Commands = append(doc.Commands, dc)
	}
	return doc
}
