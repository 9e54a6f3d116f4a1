package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relmap/internal/orm/codegen"
)

func newDDLCommand(opts *globalOptions) *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print CREATE TABLE statements for the loaded model",
		Long: `Generate the tables of the model for the configured dialect. Principal
tables come before the tables that reference them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.close()

			gen := codegen.NewDDLGenerator(s.renderer.Dialect)
			if drop {
				fmt.Fprint(cmd.OutOrStdout(), gen.GenerateDropSchema(s.model))
				return nil
			}
			ddl, err := gen.GenerateSchema(s.model)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), ddl)
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "print DROP TABLE statements instead, dependents first")
	return cmd
}
