// Package tsrpcgen renders the TypeScript client for declared endpoints.
//
// The document is a single file: an export list, then for every endpoint a
// namespace holding the types it needs and a function that POSTs its
// positional arguments to /<name>, then a shared namespace with the
// transport helper.
//
//	export {
//	  login
//	}
//	namespace login {
//	  export interface Password { ... }
//	}
//	function login(email: string, password: login.Password): __request.CancelablePromise<string> {
//	  return __request.request({ url: 'http://localhost:8080' }, { method: 'POST', url: '/login', body: [email, password], mediaType: 'application/json' });
//	}
//	namespace __request {
//	  ...
//	}
package tsrpcgen

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/broady/tsrpc"
	"github.com/broady/tsrpc/tsrpcgen/sink"
	"github.com/broady/tsrpc/tstype"
	"github.com/broady/tsrpc/typeexpr"
)

//go:embed runtime/request.ts
var requestHelper string

// DefaultNamespace is the namespace that holds the transport helper.
const DefaultNamespace = "__request"

// Filter selects which registered descriptors are emitted.
type Filter int

const (
	// OnlyActivated emits descriptors whose name has been activated.
	OnlyActivated Filter = iota
	// AllDeclared emits every registered descriptor.
	AllDeclared
)

func (f Filter) String() string {
	switch f {
	case OnlyActivated:
		return "only-activated"
	case AllDeclared:
		return "all-declared"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// Source provides the descriptors and activation set to generate from.
// *tsrpc.API implements it.
type Source interface {
	Registry() *tsrpc.Registry
	ActivatedNames() []string
}

// Options configures Render and Emit.
type Options struct {
	// ServerURL is the base URL the client sends requests to.
	ServerURL string

	// Filter selects descriptors. The zero value is OnlyActivated.
	Filter Filter

	// EnforceActivation fails generation with *UnexportedActivationError if
	// any activated name is missing from the output.
	EnforceActivation bool

	// Namespace names the transport helper namespace.
	// Default: DefaultNamespace.
	Namespace string

	// Helper replaces the embedded transport helper text. It must export
	// CancelablePromise and request.
	Helper string

	// FileMode is the permission of the written file (default: 0644).
	FileMode os.FileMode

	// Logger receives progress logs. Default: slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.Helper == "" {
		o.Helper = requestHelper
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Export writes the client for src to path, emitting only activated
// endpoints and failing if any activated endpoint is missing.
func Export(src Source, serverURL, path string) error {
	return Emit(src, path, Options{
		ServerURL:         serverURL,
		Filter:            OnlyActivated,
		EnforceActivation: true,
	})
}

// Emit renders the client and writes it to path. Parent directories are
// created; the file itself is replaced atomically, so a failed generation
// never leaves a partial document.
func Emit(src Source, path string, opts Options) error {
	s, name := sink.ForFile(path)
	if opts.FileMode != 0 {
		s.Mode = opts.FileMode
	}
	return EmitTo(context.Background(), s, name, src, opts)
}

// EmitTo renders the client and writes it to path within s.
func EmitTo(ctx context.Context, s sink.Sink, path string, src Source, opts Options) error {
	opts = opts.withDefaults()
	doc, err := Render(src, opts)
	if err != nil {
		return err
	}
	if err := s.WriteFile(ctx, path, doc); err != nil {
		return err
	}
	opts.Logger.Info("wrote TypeScript client",
		slog.String("path", path),
		slog.Int("bytes", len(doc)))
	return nil
}

// Render returns the client document without writing it.
// Output is deterministic: endpoints appear in ascending name order.
func Render(src Source, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	if tstype.Identifier(opts.Namespace) != opts.Namespace {
		return nil, fmt.Errorf("tsrpcgen: helper namespace %q is not a valid identifier", opts.Namespace)
	}

	active := make(map[string]bool)
	for _, name := range src.ActivatedNames() {
		active[name] = true
	}

	blocks := make(map[string]string)
	for d := range src.Registry().All() {
		if opts.Filter == OnlyActivated && !active[d.Name] {
			continue
		}
		if _, dup := blocks[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateExportName, d.Name)
		}
		if d.Name == "" || tstype.Identifier(d.Name) != d.Name {
			return nil, fmt.Errorf("tsrpcgen: endpoint name %q is not a valid identifier", d.Name)
		}
		if d.Name == opts.Namespace {
			return nil, fmt.Errorf("tsrpcgen: endpoint %q collides with the helper namespace", d.Name)
		}
		block, err := renderEndpoint(d, opts)
		if err != nil {
			return nil, err
		}
		blocks[d.Name] = block
		opts.Logger.Debug("rendered endpoint",
			slog.String("endpoint", d.Name),
			slog.Int("params", len(d.Params)),
			slog.Int("declarations", len(d.Declarations)))
	}

	if opts.EnforceActivation {
		var missing []string
		for name := range active {
			if _, ok := blocks[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return nil, &UnexportedActivationError{Names: missing}
		}
	}

	names := slices.Sorted(maps.Keys(blocks))

	var b bytes.Buffer
	b.WriteString(exportList(names))
	for _, name := range names {
		b.WriteString(blocks[name])
	}
	fmt.Fprintf(&b, "namespace %s {\n", opts.Namespace)
	b.WriteString(indent(strings.TrimRight(opts.Helper, "\n")))
	b.WriteString("}\n")
	return b.Bytes(), nil
}

func exportList(names []string) string {
	if len(names) == 0 {
		return "export {}\n"
	}
	return "export {\n  " + strings.Join(names, ",\n  ") + "\n}\n"
}

// renderEndpoint produces the namespace block and function for d.
func renderEndpoint(d *tsrpc.Descriptor, opts Options) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "namespace %s {\n", d.Name)
	for _, id := range d.DeclarationIDs() {
		b.WriteString(indent("export " + d.Declarations[id]))
	}
	b.WriteString("}\n")

	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		// The helper is called from the function body, so a parameter may
		// not shadow its namespace.
		switch {
		case p.Name == "" || tstype.Identifier(p.Name) != p.Name:
			return "", fmt.Errorf("endpoint %q: parameter name %q is not a valid identifier", d.Name, p.Name)
		case p.Name == opts.Namespace:
			return "", fmt.Errorf("endpoint %q: parameter %q collides with the helper namespace", d.Name, p.Name)
		}
		typ, err := typeexpr.Prefix(d.Name, p.Type)
		if err != nil {
			return "", fmt.Errorf("endpoint %q: parameter %s: %w", d.Name, p.Name, err)
		}
		params[i] = p.Name + ": " + typ
	}
	resp, err := typeexpr.Prefix(d.Name, d.Response)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: response: %w", d.Name, err)
	}
	if resp == "" {
		resp = "void"
	}

	ns := opts.Namespace
	fmt.Fprintf(&b, "function %s(%s): %s.CancelablePromise<%s> {\n", d.Name, strings.Join(params, ", "), ns, resp)
	fmt.Fprintf(&b, "  return %s.request({ url: %s }, { method: 'POST', url: %s, body: [%s], mediaType: 'application/json' });\n",
		ns, quote(opts.ServerURL), quote("/"+d.Name), strings.Join(d.ParamNames(), ", "))
	b.WriteString("}\n")
	return b.String(), nil
}

// indent prefixes every non-empty line of s with two spaces and terminates
// it with a newline.
func indent(s string) string {
	var b strings.Builder
	for line := range strings.Lines(s) {
		line = strings.TrimSuffix(line, "\n")
		if line != "" {
			b.WriteString("  ")
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// quote renders s as a single-quoted TypeScript string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
