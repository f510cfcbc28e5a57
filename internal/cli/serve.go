package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/hanpama/genrelay/internal/server"
	starwars "github.com/hanpama/genrelay/internal/starwars"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	*globalOptions
	listen string
	pretty bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	o := &serveOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Star Wars sample data as a GraphQL endpoint",
		Long: `Serve the Star Wars schema at /graphql over HTTP and over websockets
(graphql-transport-ws). Point the demo command at it with
--endpoint http://localhost:8080/graphql or --transport ws.`,
		Args: cobra.NoArgs,
		RunE: o.run,
	}
	cmd.Flags().StringVar(&o.listen, "listen", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "Indent JSON responses")
	return cmd
}

func (o *serveOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	logger, shutdown, err := o.setupObservability(cmd, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	opts := []server.Option{server.WithLogger(logger), server.WithTimeout(cfg.Timeout)}
	if len(cfg.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.CORSOrigins...))
	}
	if o.pretty {
		opts = append(opts, server.WithPretty())
	}
	handler, err := starwars.NewHandler(opts...)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/graphql", handler)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger.Info("serving Star Wars GraphQL", "url", "http://"+ln.Addr().String()+"/graphql")
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
