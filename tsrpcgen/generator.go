package tsrpcgen

import (
	"context"
	"log/slog"
	"os"

	"github.com/broady/tsrpc/tsrpcgen/sink"
)

// Generator provides a fluent API over Options.
//
//	err := tsrpcgen.FromAPI(api).
//	    ServerURL("http://localhost:8080").
//	    ToFile("web/src/client.ts")
//
// The defaults match Export: only activated endpoints, with enforcement.
type Generator struct {
	src  Source
	opts Options
}

// FromAPI creates a Generator for src.
func FromAPI(src Source) *Generator {
	return &Generator{
		src: src,
		opts: Options{
			Filter:            OnlyActivated,
			EnforceActivation: true,
		},
	}
}

// ServerURL sets the base URL the client sends requests to.
func (g *Generator) ServerURL(url string) *Generator {
	g.opts.ServerURL = url
	return g
}

// AllDeclared emits every registered descriptor, activated or not.
func (g *Generator) AllDeclared() *Generator {
	g.opts.Filter = AllDeclared
	return g
}

// AllowUnexported disables the check that every activated endpoint is in
// the output.
func (g *Generator) AllowUnexported() *Generator {
	g.opts.EnforceActivation = false
	return g
}

// HelperNamespace renames the transport helper namespace.
func (g *Generator) HelperNamespace(ns string) *Generator {
	g.opts.Namespace = ns
	return g
}

// Helper replaces the transport helper text.
func (g *Generator) Helper(text string) *Generator {
	g.opts.Helper = text
	return g
}

// FileMode sets the permission of the written file.
func (g *Generator) FileMode(mode os.FileMode) *Generator {
	g.opts.FileMode = mode
	return g
}

// WithLogger sets the logger for progress messages.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.opts.Logger = logger
	return g
}

// Options returns the accumulated options.
func (g *Generator) Options() Options {
	return g.opts
}

// Render returns the document without writing it.
func (g *Generator) Render() ([]byte, error) {
	return Render(g.src, g.opts)
}

// ToFile writes the document to path.
func (g *Generator) ToFile(path string) error {
	return Emit(g.src, path, g.opts)
}

// ToSink writes the document to path within s.
func (g *Generator) ToSink(ctx context.Context, s sink.Sink, path string) error {
	return EmitTo(ctx, s, path, g.src, g.opts)
}
