package gen

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata/graph"
)

// SchemaFile is the file holding the tables and the DDL of the schema.
const SchemaFile = "schema.go"

// JenniferGenerator generates the constants, property accessors and DDL
// of a graph. Every entity gets its own file, rendered by a pool of
// workers with jennifer tracking the imports.
type JenniferGenerator struct {
	graph   *graph.Graph
	workers int
	outDir  string
	pkg     string
	logger  *slog.Logger
}

// NewJenniferGenerator creates a generator writing to outDir. The package
// name defaults to the base name of outDir and the number of workers to
// the one the graph was built with.
func NewJenniferGenerator(g *graph.Graph, outDir string) *JenniferGenerator {
	workers := g.Workers()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &JenniferGenerator{
		graph:   g,
		workers: workers,
		outDir:  outDir,
		pkg:     filepath.Base(outDir),
		logger:  g.Logger(),
	}
}

// WithWorkers sets the number of parallel workers.
func (g *JenniferGenerator) WithWorkers(n int) *JenniferGenerator {
	if n > 0 {
		g.workers = n
	}
	return g
}

// WithPackage sets the output package name.
func (g *JenniferGenerator) WithPackage(pkg string) *JenniferGenerator {
	if pkg != "" {
		g.pkg = pkg
	}
	return g
}

// Graph returns the graph being generated.
func (g *JenniferGenerator) Graph() *graph.Graph {
	return g.graph
}

// Generate writes the files of the graph. The first failing file cancels
// the others.
func (g *JenniferGenerator) Generate(ctx context.Context) error {
	if !token.IsIdentifier(g.pkg) || token.IsKeyword(g.pkg) {
		return NewGenerationError("", "", fmt.Sprintf("invalid package name %q", g.pkg), nil)
	}
	files, err := g.fileNames()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return err
	}

	errg, gctx := errgroup.WithContext(ctx)
	errg.SetLimit(g.workers)
	for _, e := range g.graph.Entities() {
		name := files[e]
		errg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := g.genEntity(e)
			if err != nil {
				return NewGenerationError(e.Name, name, "", err)
			}
			return g.writeFile(f, name)
		})
	}
	errg.Go(func() error {
		f, err := g.genSchema()
		if err != nil {
			return NewGenerationError("", SchemaFile, "", err)
		}
		return g.writeFile(f, SchemaFile)
	})
	if err := errg.Wait(); err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "generated code", "dir", g.outDir, "package", g.pkg, "files", len(files)+1)
	return nil
}

// fileNames assigns the file of every entity: its snake_case name.
func (g *JenniferGenerator) fileNames() (map[*graph.Entity]string, error) {
	files := make(map[*graph.Entity]string)
	taken := map[string]string{SchemaFile: ""}
	for _, e := range g.graph.Entities() {
		base := graph.Snake(e.Name)
		// Keep the go tool from reading the file as a test.
		if strings.HasSuffix(base, "_test") {
			base += "_entity"
		}
		name := base + ".go"
		if other, ok := taken[name]; ok {
			if other == "" {
				other = "the schema"
			}
			return nil, NewGenerationError(e.Name, name, "file name collides with "+other, nil)
		}
		taken[name] = e.Name
		files[e] = name
	}
	return files, nil
}

func (g *JenniferGenerator) writeFile(f *jen.File, filename string) error {
	out, err := os.Create(filepath.Join(g.outDir, filename))
	if err != nil {
		return err
	}
	defer out.Close()

	// Jennifer renders with correct imports and formatting
	if err := f.Render(out); err != nil {
		return NewGenerationError("", filename, "render", err)
	}
	return nil
}

func (g *JenniferGenerator) newFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by strata. DO NOT EDIT.")
	return f
}
