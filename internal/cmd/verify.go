package cmd

import (
	"errors"
	"log/slog"

	"github.com/Alia5/tpm2gen/internal/codegen/generator"
	"github.com/Alia5/tpm2gen/internal/codegen/wire"
	"github.com/Alia5/tpm2gen/internal/log"
)

type Verify struct {
	Source `embed:""`
}

// Run is called by Kong when the verify command is executed.
func (c *Verify) Run(logger *slog.Logger, raw log.RawLogger) error {
	gen := generator.New("", logger)
	md, err := c.load(gen, logger)
	if md == nil {
		return err
	}

	m := wire.New(wire.Synthetic(md.Types), raw)
	var errs []error
	for _, p := range md.Plans {
		if err := m.RoundTrip(p); err != nil {
			logger.Error("Plan failed round trip", "command", p.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Debug("Plan verified", "command", p.Name, "shape", p.Shape)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("All plans verified", "commands", len(md.Plans))
	return md.ParseErr
}
