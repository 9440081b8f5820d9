// Package config holds the root command-line definition.
package config

import (
	"github.com/alecthomas/kong"

	"github.com/Alia5/tpm2gen/internal/cmd"
)

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" enum:"trace,debug,info,warn,error" env:"TPM2GEN_LOG_LEVEL"`
	File    string `help:"Also write logs to this file; the console then only shows warnings and errors" env:"TPM2GEN_LOG_FILE"`
	RawFile string `help:"Write hex dumps of buffers processed by verify to this file" env:"TPM2GEN_LOG_RAW_FILE"`
}

type CLI struct {
	Config  string           `help:"Configuration file (.json, .yaml or .toml)" env:"TPM2GEN_CONFIG"`
	Log     Log              `embed:"" prefix:"log."`
	Version kong.VersionFlag `help:"Print version and exit"`

	Generate  cmd.Generate      `cmd:"" help:"Generate C marshalling sources from a command grammar"`
	Check     cmd.Check         `cmd:"" help:"Report generated files that are missing or out of date"`
	Dump      cmd.Dump          `cmd:"" help:"Print the parsed command model"`
	Verify    cmd.Verify        `cmd:"" help:"Round-trip every command plan through the wire interpreter"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}
