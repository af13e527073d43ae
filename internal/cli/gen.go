package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/syssam/strata/compiler/gen"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Output  string // output directory
	Package string // package name, defaults to the base name of Output
	Watch   bool
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen <path>",
		Short: "Generate Go constants and property accessors",
		Long: `Generate a Go package from the YAML entity descriptions at path: one
file per entity holding its table and column names and a typed accessor of
its properties, plus schema.go holding the DDL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := opts.printer(cmd.ErrOrStderr())
			run := func(ctx context.Context) error {
				return runGen(ctx, opts, args[0], p)
			}
			if opts.Watch {
				return watch(cmd.Context(), p, args[0], run)
			}
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "strata", "output directory")
	cmd.Flags().StringVarP(&opts.Package, "package", "p", "", "package name of the generated code")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "rerun when the descriptions change")

	return cmd
}

func runGen(ctx context.Context, opts *GenOptions, path string, p *printer) error {
	g, err := opts.build(ctx, path)
	if err != nil {
		return err
	}
	jg := gen.NewJenniferGenerator(g, opts.Output).WithPackage(opts.Package)
	if err := jg.Generate(ctx); err != nil {
		return err
	}
	p.success("generated %d entities in %s", len(g.Entities()), opts.Output)
	return nil
}
