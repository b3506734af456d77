// Package commands implements the blockaudit CLI commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockaudit/pkg/config"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
	"github.com/Sumatoshi-tech/blockaudit/pkg/version"
)

type observabilityInit func(cfg observability.Config) (observability.Providers, error)

// storeFlags are shared by every command that opens the document store.
type storeFlags struct {
	configPath string
	dsn        string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default: blockaudit.yaml in ., ./config, /etc/blockaudit)")
	cmd.Flags().StringVar(&f.dsn, "db", "", "SQLite database holding the documents (default from config: "+config.DefaultStoreDSN+")")
}

// load reads the configuration and applies the store flags on top.
func (f *storeFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("db") {
		cfg.Store.DSN = f.dsn
	}

	return cfg, nil
}

func buildObservabilityConfig(
	cfg *config.Config,
	mode observability.AppMode,
	debugTrace bool,
	logOutput io.Writer,
) (observability.Config, error) { //nolint:whitespace // multi-line signature.
	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Resolved()
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.MetricsAddr = cfg.Observability.MetricsAddr
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.DebugTrace = debugTrace
	obsCfg.LogLevel = level
	obsCfg.LogJSON = strings.EqualFold(cfg.Logging.Format, config.LogFormatJSON)
	obsCfg.LogOutput = logOutput

	return obsCfg, nil
}

// startObservability runs init and returns the providers with a usable
// logger, plus a shutdown func that logs instead of failing.
func startObservability(init observabilityInit, obsCfg observability.Config) (observability.Providers, func(), error) {
	providers, err := init(obsCfg)
	if err != nil {
		return observability.Providers{}, nil, fmt.Errorf("init observability: %w", err)
	}

	if providers.Logger == nil {
		providers.Logger = observability.DiscardLogger()
	}

	shutdown := func() {
		if providers.Shutdown == nil {
			return
		}

		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}

	return providers, shutdown, nil
}

func warn(w io.Writer, format string, args ...any) {
	_, err := color.New(color.FgYellow).Fprintf(w, format+"\n", args...)
	if err != nil {
		slog.Debug("write warning", "error", err)
	}
}

func success(w io.Writer, format string, args ...any) {
	_, err := color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
	if err != nil {
		slog.Debug("write message", "error", err)
	}
}
