package cmd

import (
	"log/slog"

	"github.com/Alia5/tpm2gen/internal/codegen/generator"
	"github.com/Alia5/tpm2gen/internal/codegen/meta"
)

// Source selects the generator inputs.
type Source struct {
	Grammar string `help:"Command grammar listing (_BEGIN ... _END)" required:"" type:"existingfile" env:"TPM2GEN_GRAMMAR"`
	Types   string `help:"Type table (.yaml, .toml or .json) merged over the built-in one" type:"existingfile" env:"TPM2GEN_TYPES"`
}

// load returns nil Metadata when no command could be parsed. After a
// grammar error it returns the commands parsed before it along with the
// error, which the parser has already logged.
func (s Source) load(g *generator.Generator, logger *slog.Logger) (*meta.Metadata, error) {
	md, err := g.Load(s.Grammar, s.Types)
	if md == nil || err == nil {
		return md, err
	}
	if len(md.Commands) == 0 {
		return nil, err
	}
	logger.Warn("Continuing with commands parsed before the grammar error", "commands", len(md.Commands))
	return md, err
}
