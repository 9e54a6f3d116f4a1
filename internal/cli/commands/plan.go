package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relmap/internal/cli/ui"
	"github.com/conduit-lang/relmap/internal/orm/include"
)

func newPlanCommand(opts *globalOptions) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "plan <Entity>",
		Short: "Print the SQL commands an include query compiles to",
		Long: `Compile a query rooted at an entity and print one command per stream.

Stream 0 is the root statement with its to-one joins. Every to-many include step
adds a child stream ordered by the parent key.`,
		Example: `  relmap plan Customer --include Orders.OrderItems --where "Name = ann"
  relmap plan OrderItem -i Order.Customer --dialect sqlite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.close()

			compiled, err := qf.compile(s, args[0])
			if err != nil {
				return err
			}
			commands, err := compiled.Commands(cmd.Context(), s.renderer, nil)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			ui.Header(w, fmt.Sprintf("%s: %d stream(s), %s", compiled.Entity.Name(), len(commands), s.renderer.Dialect), s.noColor)
			fmt.Fprintln(w)

			for _, c := range commands {
				section := ui.NewSection(w, fmt.Sprintf("stream %d%s", c.Stream, describeStream(compiled.Collection(c.Stream))), s.noColor)
				section.AddLine("%s", c.SQL)
				if len(c.Args) > 0 {
					section.AddLine("args: %v", c.Args)
				}
				section.Render()
			}
			return nil
		},
	}
	qf.register(cmd)
	return cmd
}

// describeStream names the collection step that produced a child stream
func describeStream(c *include.CollectionStrategy) string {
	if c == nil {
		return " (root)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, " (%s", c.Navigation)
	if c.ParentStream != include.RootStream {
		fmt.Fprintf(&b, " under stream %d", c.ParentStream)
	}
	b.WriteString(")")
	return b.String()
}
