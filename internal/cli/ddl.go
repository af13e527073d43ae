package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/dialect/sql/schema"
)

// DDLOptions holds flags for the ddl command.
type DDLOptions struct {
	*RootOptions
	Output      string // output file path
	IfNotExists bool
	Watch       bool
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DDLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ddl <path>",
		Short: "Print the CREATE TABLE statements of entity descriptions",
		Long: `Print the CREATE TABLE statements of the YAML entity descriptions at
path, a file or a directory of .yaml files. Statements are written in
dependency order, one per line.

Examples:
  strata ddl schema/                     # print to stdout
  strata ddl schema/ -o schema.sql       # write to a file
  strata ddl schema/ -o schema.sql -w    # rewrite on every change`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.printer(cmd.ErrOrStderr())
			run := func(ctx context.Context) error {
				return runDDL(ctx, opts, args[0], cmd.OutOrStdout(), p)
			}
			if opts.Watch {
				return watch(cmd.Context(), p, args[0], run)
			}
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.IfNotExists, "if-not-exists", false, "emit CREATE TABLE IF NOT EXISTS")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "rerun when the descriptions change")

	return cmd
}

func runDDL(ctx context.Context, opts *DDLOptions, path string, stdout io.Writer, p *printer) error {
	g, err := opts.build(ctx, path)
	if err != nil {
		return err
	}
	tables, err := schema.Tables(g)
	if err != nil {
		return err
	}
	if opts.Output == "" {
		return schema.WriteTo(stdout, tables, opts.IfNotExists)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	if err := schema.WriteTo(f, tables, opts.IfNotExists); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	p.success("wrote %d tables to %s", len(tables), opts.Output)
	return nil
}
