package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bibliothecula/internal/catalog"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Export the statement catalog",
	}
	cmd.AddCommand(newSchemaExportCmd(a), newSchemaOrderCmd(a))
	return cmd
}

func newSchemaExportCmd(a *app) *cobra.Command {
	var (
		format   string
		extended bool
		out      string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the schema as SQL or Markdown",
		Long: `Render the catalog in dependency order. The main export holds the core
tables and the search index; --extended renders the undo log, backlinks,
maintenance statements and examples instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ParseFormat(format)
			if err != nil {
				return err
			}
			core, ext, err := catalog.Exports(catalog.Default())
			if err != nil {
				return err
			}
			e := core
			if extended {
				e = ext
			}
			if out == "" {
				return catalog.Render(cmd.OutOrStdout(), e, f)
			}
			if err := catalog.ExportFile(out, e, f, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "sql", "output format: sql or md")
	cmd.Flags().BoolVar(&extended, "extended", false, "export the extended schema")
	cmd.Flags().StringVar(&out, "out", "", "write to a file instead of standard output")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing file")
	return cmd
}

type orderedStatement struct {
	ID        string   `json:"id" yaml:"id"`
	Kind      string   `json:"kind" yaml:"kind"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

func newSchemaOrderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order [group...]",
		Short: "Print statements in the order they are applied",
		Long: fmt.Sprintf(`Resolve the statements of the given groups, or of the schema groups when
none are given, and print them in dependency order.

Groups: %v`, catalog.Default().Groups()),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.Default()
			groups := args
			if len(groups) == 0 {
				groups = catalog.SchemaGroups
			}
			for _, g := range groups {
				if _, ok := c.Group(g); !ok {
					return fmt.Errorf("unknown group %q (valid: %v)", g, c.Groups())
				}
			}
			order, err := catalog.Resolve(c.Statements(groups...))
			if err != nil {
				return err
			}

			views := make([]orderedStatement, 0, len(order))
			for _, s := range order {
				views = append(views, orderedStatement{ID: s.ID(), Kind: s.Kind().String(), DependsOn: s.Dependencies()})
			}
			return a.emit(cmd, views, func(w io.Writer) error {
				rows := make([][]string, 0, len(views))
				for i, v := range views {
					rows = append(rows, []string{fmt.Sprint(i + 1), v.ID, v.Kind})
				}
				return table(w, nil, rows)
			})
		},
	}
}
