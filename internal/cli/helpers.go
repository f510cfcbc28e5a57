package cli

import (
	"context"
	"fmt"
	"log/slog"

	config "github.com/hanpama/genrelay/internal/config"
	eventbus "github.com/hanpama/genrelay/internal/eventbus"
	logging "github.com/hanpama/genrelay/internal/logging"
	network "github.com/hanpama/genrelay/internal/network"
	otel "github.com/hanpama/genrelay/internal/otel"
	starwars "github.com/hanpama/genrelay/internal/starwars"
	"github.com/spf13/cobra"
)

// loadConfig reads --config when given and applies the persistent flags
// over it.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		cfg.LogFormat = g.logFormat
	}
	if g.otelEndpoint != "" {
		cfg.OTelEndpoint = g.otelEndpoint
	}
	return cfg, nil
}

// setupObservability installs the logger, the event bus and, when an
// endpoint is configured, tracing. The returned function flushes traces.
func (g *globalOptions) setupObservability(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func(), error) {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.OTelEndpoint, g.otelService)
	if err != nil {
		return nil, nil, fmt.Errorf("otel setup: %w", err)
	}
	return logger, func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("otel shutdown failed", "error", err)
		}
		eventbus.Use(nil)
	}, nil
}

// newLayer builds the network layer for cfg. The mock layer serves the
// built-in Star Wars data plus the config's mock blocks.
func newLayer(cfg *config.Config, logger *slog.Logger) (network.Layer, func(), error) {
	opts := []network.Option{network.WithLogger(logger), network.WithTimeout(cfg.Timeout)}
	for k, v := range cfg.Headers {
		opts = append(opts, network.WithHeader(k, v))
	}
	switch cfg.Transport {
	case config.TransportHTTP:
		return network.NewHTTPLayer(cfg.Endpoint, opts...), func() {}, nil
	case config.TransportWS:
		ws := network.NewWSLayer(cfg.Endpoint, opts...)
		return ws, func() { _ = ws.Close() }, nil
	case config.TransportMock:
		mock := starwars.RegisterMocks(network.NewMockLayer())
		for _, m := range cfg.Mocks {
			mock.Add(m.Field, m.Argument, m.Data)
		}
		return mock, func() {}, nil
	}
	return nil, nil, fmt.Errorf("%w: transport %q", config.ErrInvalid, cfg.Transport)
}
