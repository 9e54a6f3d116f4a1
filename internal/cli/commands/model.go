package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relmap/internal/cli/ui"
	"github.com/conduit-lang/relmap/internal/orm/metadata"
)

func newModelCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "model [Entity]",
		Short: "Show the entities, keys and relationships of the loaded model",
		Long: `Load the model file through the convention pipeline and print what it
resolved to: tables, primary keys, discovered foreign keys and navigations.
With an entity name, print that entity's properties as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				e, err := s.entity(args[0])
				if err != nil {
					return err
				}
				printEntity(cmd, s, e)
				return nil
			}

			table := ui.NewTable(w, s.noColor, "Entity", "Table", "Key", "Navigations")
			for _, e := range s.model.Entities() {
				var navs []string
				for _, n := range e.Navigations() {
					navs = append(navs, navigationLabel(n))
				}
				table.AddRow(e.Name(), qualifiedTable(e), keyLabel(e), strings.Join(navs, ", "))
			}
			table.Render()
			return nil
		},
	}
}

func printEntity(cmd *cobra.Command, s *session, e *metadata.Entity) {
	w := cmd.OutOrStdout()
	ui.Header(w, fmt.Sprintf("%s (%s)", e.Name(), qualifiedTable(e)), s.noColor)

	props := ui.NewTable(w, s.noColor, "Property", "Type", "Column", "Shadow")
	for _, p := range e.Properties() {
		shadow := ""
		if p.IsShadow() {
			shadow = "yes"
		}
		props.AddRow(p.Name(), p.Type().String(), p.ColumnName(), shadow)
	}
	props.Render()
	fmt.Fprintln(w)

	fks := ui.NewTable(w, s.noColor, "Foreign key", "Principal", "Required", "Unique")
	for _, fk := range e.ForeignKeys() {
		fks.AddRow(propertyNames(fk.Properties()), fk.PrincipalEntity().Name()+"("+propertyNames(fk.PrincipalKey().Properties())+")",
			yesNo(fk.IsRequired()), yesNo(fk.IsUnique()))
	}
	if fks.Len() > 0 {
		fks.Render()
	}
}

func qualifiedTable(e *metadata.Entity) string {
	if e.Schema() != "" {
		return e.Schema() + "." + e.TableName()
	}
	return e.TableName()
}

func keyLabel(e *metadata.Entity) string {
	pk, ok := e.PrimaryKey()
	if !ok {
		return "-"
	}
	return propertyNames(pk.Properties())
}

func navigationLabel(n *metadata.Navigation) string {
	if n.IsCollection() {
		return n.Name() + "[" + n.TargetEntity().Name() + "]"
	}
	return n.Name() + "->" + n.TargetEntity().Name()
}

func propertyNames(props []*metadata.Property) string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
