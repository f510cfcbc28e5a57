package cli

import (
	"encoding/json"
	"fmt"

	container "github.com/hanpama/genrelay/internal/container"
	printer "github.com/hanpama/genrelay/internal/printer"
	starwars "github.com/hanpama/genrelay/internal/starwars"
	"github.com/spf13/cobra"
)

type printOptions struct {
	factions []string
	validate bool
}

func newPrintCmd() *cobra.Command {
	o := &printOptions{}
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the queries the demo route sends",
		Args:  cobra.NoArgs,
		RunE:  o.run,
	}
	cmd.Flags().StringSliceVar(&o.factions, "factions", starwars.FactionNames, "Faction names to query")
	cmd.Flags().BoolVar(&o.validate, "validate", true, "Validate the printed text against the Star Wars schema")
	return cmd
}

func (o *printOptions) run(cmd *cobra.Command, args []string) error {
	classes, err := starwars.NewClasses()
	if err != nil {
		return err
	}
	qs, err := container.GetQueries(classes.App, starwars.FactionsRoute(o.factions...))
	if err != nil {
		return err
	}
	sch, err := starwars.Schema()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range classes.App.FragmentNames() {
		root := qs[name]
		if root == nil {
			continue
		}
		printed, err := printer.Print(root)
		if err != nil {
			return fmt.Errorf("print %s: %w", name, err)
		}
		if o.validate {
			if _, errs := sch.ParseQuery(printed.Text); len(errs) > 0 {
				return fmt.Errorf("validate %s: %w", name, errs)
			}
		}
		vars, err := json.Marshal(printed.Variables)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n%s\n%s\n", name, printed.Text, vars)
	}
	return nil
}
