// Package cli implements the strata command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/strata"
	"github.com/syssam/strata/compiler/load"
	"github.com/syssam/strata/graph"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string // YAML configuration file
	DSN     string // overrides the data source of the configuration
	Workers int    // overrides the worker limit of the configuration
	Verbose bool
	NoColor bool

	cfg strata.Config
}

// NewRootCommand creates the root command of the strata CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "strata - entity hierarchies over SQL tables",
		Long: `Work with YAML entity descriptions: print their DDL, create their
tables in a SQLite database or generate Go constants and typed property
accessors from them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.configure(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "configuration file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "SQLite data source name")
	cmd.PersistentFlags().IntVar(&opts.Workers, "workers", 0, "concurrency limit of schema resolution and code generation")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	// Add subcommands
	cmd.AddCommand(NewDDLCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))

	return cmd
}

// configure reads the configuration file, then applies the flags over it.
func (o *RootOptions) configure(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := strata.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	var overrides []strata.Option
	// The log_level of a configuration file holds unless --verbose is given.
	if o.Config == "" || o.Verbose {
		overrides = append(overrides, logger)
	}
	if cmd.Flags().Changed("dsn") {
		overrides = append(overrides, strata.WithDSN(o.DSN))
	}
	if cmd.Flags().Changed("workers") {
		overrides = append(overrides, strata.WithWorkers(o.Workers))
	}
	if o.Config == "" {
		o.cfg = strata.NewConfig(overrides...)
		return nil
	}
	cfg, err := strata.LoadConfig(o.Config, overrides...)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// build loads the entity descriptions at path and resolves their graph.
func (o *RootOptions) build(ctx context.Context, path string) (*graph.Graph, error) {
	defs, err := load.Load(path)
	if err != nil {
		return nil, err
	}
	return graph.Build(ctx, defs, strata.WithConfig(o.cfg))
}

// printer writes the status lines of the commands.
type printer struct {
	w                   io.Writer
	ok, info, warn, bad *color.Color
}

func (o *RootOptions) printer(w io.Writer) *printer {
	p := &printer{
		w:    w,
		ok:   color.New(color.FgGreen, color.Bold),
		info: color.New(color.FgCyan),
		warn: color.New(color.FgYellow, color.Bold),
		bad:  color.New(color.FgRed, color.Bold),
	}
	if o.NoColor {
		for _, c := range []*color.Color{p.ok, p.info, p.warn, p.bad} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) success(format string, args ...any) {
	p.ok.Fprint(p.w, "✓ ")
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) step(format string, args ...any) {
	p.info.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) warning(format string, args ...any) {
	p.warn.Fprint(p.w, "! ")
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) failure(err error) {
	p.bad.Fprint(p.w, "✗ ")
	fmt.Fprintln(p.w, err)
}
