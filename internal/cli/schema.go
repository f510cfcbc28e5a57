package cli

import (
	starwars "github.com/hanpama/genrelay/internal/starwars"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the Star Wars schema SDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := starwars.Schema()
			if err != nil {
				return err
			}
			sch.Render(cmd.OutOrStdout())
			return nil
		},
	}
}
