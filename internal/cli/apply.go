package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/syssam/strata"
	"github.com/syssam/strata/compiler/load"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/schema"
	"github.com/syssam/strata/orm"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DryRun bool
	Watch  bool
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <path>",
		Short: "Create the missing tables in a SQLite database",
		Long: `Create the tables of the YAML entity descriptions at path that the
database lacks. Existing tables are inspected and compared with the
descriptions; incompatible changes abort the run. The database is given by
--dsn or by the dsn key of the configuration file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.printer(cmd.ErrOrStderr())
			run := func(ctx context.Context) error {
				return runApply(ctx, opts, args[0], p)
			}
			if opts.Watch {
				return watch(cmd.Context(), p, args[0], run)
			}
			return run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the statements without executing them")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "rerun when the descriptions change")

	return cmd
}

func runApply(ctx context.Context, opts *ApplyOptions, path string, p *printer) error {
	if opts.cfg.DSN == "" {
		return errors.New("no data source: set --dsn or the dsn key of the configuration")
	}
	defs, err := load.Load(path)
	if err != nil {
		return err
	}
	client, err := orm.Open(ctx, dialect.SQLite, opts.cfg.DSN, defs, orm.WithConfig(strata.WithConfig(opts.cfg)))
	if err != nil {
		return err
	}
	defer client.Close()

	var applied []string
	hook := func(next schema.Applier) schema.Applier {
		return schema.ApplyFunc(func(ctx context.Context, conn dialect.ExecQuerier, stmts []string) error {
			applied = stmts
			if opts.DryRun {
				return nil
			}
			return next.Apply(ctx, conn, stmts)
		})
	}
	if err := client.CreateSchema(ctx, schema.WithDiff(), schema.WithApplyHook(hook)); err != nil {
		return err
	}
	switch {
	case len(applied) == 0:
		p.success("schema is up to date")
	case opts.DryRun:
		for _, stmt := range applied {
			p.step("%s;", stmt)
		}
		p.warning("dry run: %d statements not executed", len(applied))
	default:
		p.success("created %d tables", len(applied))
	}
	return nil
}
