package cli

import (
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath   string
	logLevel     string
	logFormat    string
	otelEndpoint string
	otelService  string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "genrelay",
		Short: "Relay container data binding for any view layer",
		Long: `genrelay binds view components to GraphQL data through Relay containers.

It builds fragment pointers from parent data, fetches what the record store
is missing and delivers resolved data to listeners. The demo command runs a
Star Wars container tree against mock data or a live GraphQL endpoint, and
the serve command provides such an endpoint.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "HCL config file")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&g.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&g.otelEndpoint, "otel-endpoint", "", "OTLP collector endpoint")
	flags.StringVar(&g.otelService, "otel-service", "genrelay", "OpenTelemetry service name")

	rootCmd.AddCommand(newDemoCmd(g))
	rootCmd.AddCommand(newPrintCmd())
	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}
