package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/Alia5/tpm2gen/internal/codegen/common"
	"github.com/Alia5/tpm2gen/internal/codegen/grammar"
	"github.com/Alia5/tpm2gen/internal/config"
	"github.com/Alia5/tpm2gen/internal/configpaths"
	"github.com/Alia5/tpm2gen/internal/log"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; its values feed the TPM2GEN_* env lookups below.
	envErr := godotenv.Load()

	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	version, err := common.GetVersion()
	if err != nil {
		version = "unknown"
	}

	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("tpm2gen"),
		kong.Description("TPM 2.0 command marshalling code generator"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		// Load configuration from JSON/YAML/TOML in priority order; flags/env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()
	logger = logger.With("run", uuid.NewString())
	if envErr != nil {
		logger.Debug("No .env loaded", "error", envErr)
	}

	var rawLogger log.RawLogger
	if cli.Log.RawFile != "" {
		f, err := os.OpenFile(cli.Log.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
			rawLogger = log.NewRaw(nil)
		} else {
			rawLogger = log.NewRaw(f)
			closeFiles = append(closeFiles, f)
		}
	} else if cli.Log.Level == "trace" {
		rawLogger = log.NewRaw(os.Stderr)
	} else {
		rawLogger = log.NewRaw(nil)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))
	ctx.BindTo(runCtx, (*context.Context)(nil))

	err = ctx.Run()
	var parseErr *grammar.ParseError
	if errors.As(err, &parseErr) {
		// reported by the parser
		os.Exit(1)
	}
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("TPM2GEN_CONFIG"); v != "" {
		return v
	}
	return ""
}
