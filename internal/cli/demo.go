package cli

import (
	"context"
	"fmt"
	"time"

	config "github.com/hanpama/genrelay/internal/config"
	memstore "github.com/hanpama/genrelay/internal/memstore"
	network "github.com/hanpama/genrelay/internal/network"
	scheduler "github.com/hanpama/genrelay/internal/scheduler"
	starwars "github.com/hanpama/genrelay/internal/starwars"
	"github.com/spf13/cobra"
)

type demoOptions struct {
	*globalOptions
	endpoint  string
	transport string
	factions  []string
	first     int
	force     bool
	timeout   time.Duration
}

func newDemoCmd(g *globalOptions) *cobra.Command {
	o := &demoOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render the Star Wars container tree",
		Long: `Fetch factions and their ships through a root container, feed them to the
app container and one container per ship, then print what the containers
resolved. With --first the app changes its variables and refetches.`,
		Args: cobra.NoArgs,
		RunE: o.run,
	}
	cmd.Flags().StringVar(&o.endpoint, "endpoint", "", "GraphQL endpoint (overrides config)")
	cmd.Flags().StringVar(&o.transport, "transport", "", "Transport: http, ws or mock (overrides config)")
	cmd.Flags().StringSliceVar(&o.factions, "factions", starwars.FactionNames, "Faction names to query")
	cmd.Flags().IntVar(&o.first, "first", starwars.DefaultFirst, "Ships per faction")
	cmd.Flags().BoolVar(&o.force, "force", false, "Refetch even when the store has the data")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Overall deadline")
	return cmd
}

func (o *demoOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.endpoint != "" {
		cfg.Endpoint = o.endpoint
		if o.transport == "" && cfg.Transport == config.TransportMock {
			cfg.Transport = config.TransportHTTP
		}
	}
	if o.transport != "" {
		cfg.Transport = o.transport
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, shutdown, err := o.setupObservability(cmd, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	layer, closeLayer, err := newLayer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLayer()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	store := memstore.New()
	queue := scheduler.New()
	defer queue.Close()
	fetcher := network.NewFetcher(layer, store, queue, network.WithLogger(logger), network.WithContext(ctx))
	app, err := starwars.NewApp(store, fetcher, queue, logger)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	logger.Info("loading factions", "factions", o.factions, "transport", cfg.Transport)
	if err := app.Load(ctx, starwars.FactionsRoute(o.factions...), o.force); err != nil {
		return fmt.Errorf("load factions: %w", err)
	}
	if err := app.SetFirst(ctx, o.first); err != nil {
		return fmt.Errorf("set first: %w", err)
	}
	return app.Render(cmd.OutOrStdout())
}
