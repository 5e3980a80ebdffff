// Package tstype renders Go types as TypeScript type expressions and the
// declarations those expressions depend on.
//
// A Collector walks types with runtime reflection. Each named Go type becomes
// one declaration, keyed by a stable id (its package path and Go name), and is
// referenced by bare name from expressions. Expressions are meant to be placed
// inside a namespace that holds the declarations, so they are never qualified
// here.
package tstype

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/broady/tsrpc/typeexpr"
)

// ErrUnsupported is matched by errors for Go types with no TypeScript form.
var ErrUnsupported = errors.New("unsupported type")

// Outcome is implemented by success/failure types that serialize with an
// explicit discriminant. The collector renders them as Result<T, E>.
type Outcome interface {
	OutcomeTypes() (ok, err reflect.Type)
}

const (
	// OutcomeDeclID is the declaration id of the shared Result type.
	OutcomeDeclID = "tsrpc.Result"

	outcomeName = "Result"
	outcomeDecl = `type Result<T, E> = { result: "Ok"; value: T } | { result: "Err"; value: E };`
)

var (
	outcomeType       = reflect.TypeFor[Outcome]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// Collector accumulates declarations for a set of Go types.
// A Collector is not safe for concurrent use.
type Collector struct {
	decls map[string]string       // declaration id -> text
	names map[string]string       // TypeScript name -> declaration id
	ids   map[reflect.Type]string // named type -> TypeScript name
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		decls: make(map[string]string),
		names: make(map[string]string),
		ids:   make(map[reflect.Type]string),
	}
}

// Expr returns the TypeScript expression for t and records every declaration
// it depends on. Anonymous struct types are rejected unless they sit behind a
// named type: an inline object literal cannot be namespace-qualified.
func (c *Collector) Expr(t reflect.Type) (string, error) {
	if t == nil {
		return "void", nil
	}
	if inlineObject(t) {
		return "", fmt.Errorf("tstype: %w: anonymous struct in %s must be named", ErrUnsupported, t)
	}
	return c.expr(t)
}

func inlineObject(t reflect.Type) bool {
	for {
		if t.Name() != "" && t.PkgPath() != "" {
			return false
		}
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		case reflect.Map:
			return inlineObject(t.Key()) || inlineObject(t.Elem())
		case reflect.Struct:
			return t.NumField() > 0
		default:
			return false
		}
	}
}

// Declarations returns a copy of the collected declarations.
func (c *Collector) Declarations() map[string]string {
	return maps.Clone(c.decls)
}

// Describe renders a single type with a fresh Collector.
func Describe(t reflect.Type) (expr string, decls map[string]string, err error) {
	c := NewCollector()
	expr, err = c.Expr(t)
	if err != nil {
		return "", nil, err
	}
	return expr, c.Declarations(), nil
}

func (c *Collector) expr(t reflect.Type) (string, error) {
	if s, ok := specialType(t); ok {
		return s, nil
	}
	if t.Kind() == reflect.Pointer {
		elem, err := c.expr(t.Elem())
		if err != nil {
			return "", err
		}
		return elem + " | null", nil
	}
	if t.Implements(outcomeType) {
		return c.outcome(t)
	}
	if err := checkUnsupported(t); err != nil {
		return "", err
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return c.named(t)
	}
	return c.underlying(t)
}

// underlying renders t structurally, ignoring its name.
func (c *Collector) underlying(t reflect.Type) (string, error) {
	if t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType) {
		if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
			return "string", nil
		}
		return "any", nil
	}
	if t.Kind() != reflect.String && (t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)) {
		return "string", nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return "boolean", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return "number", nil
	case reflect.String:
		return "string", nil
	case reflect.Interface:
		return "any", nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "string", nil // base64
		}
		fallthrough
	case reflect.Array:
		elem, err := c.expr(t.Elem())
		if err != nil {
			return "", err
		}
		return "Array<" + elem + ">", nil
	case reflect.Map:
		key, err := c.mapKey(t.Key())
		if err != nil {
			return "", err
		}
		value, err := c.expr(t.Elem())
		if err != nil {
			return "", err
		}
		return "Record<" + key + ", " + value + ">", nil
	case reflect.Struct:
		if t.NumField() == 0 {
			return "Record<string, never>", nil
		}
		return c.objectLiteral(t, "")
	}
	return "", fmt.Errorf("tstype: %w: %s (kind: %s)", ErrUnsupported, t, t.Kind())
}

// named declares t (once) and returns its TypeScript name.
func (c *Collector) named(t reflect.Type) (string, error) {
	if name, ok := c.ids[t]; ok {
		return name, nil
	}
	name := typeName(t)
	id := t.PkgPath() + "." + t.Name()
	if other, ok := c.names[name]; ok && other != id {
		return "", fmt.Errorf("tstype: %s and %s both render as %q", other, id, name)
	}
	c.names[name] = id
	c.ids[t] = name // set before recursing so self-references terminate

	var decl string
	if t.Kind() == reflect.Struct && !t.Implements(jsonMarshalerType) && !reflect.PointerTo(t).Implements(jsonMarshalerType) {
		body, err := c.objectLiteral(t, "")
		if err != nil {
			return "", fmt.Errorf("%s: %w", t, err)
		}
		decl = "interface " + name + " " + body
	} else {
		under, err := c.underlying(t)
		if err != nil {
			return "", fmt.Errorf("%s: %w", t, err)
		}
		decl = "type " + name + " = " + under + ";"
	}
	c.decls[id] = decl
	return name, nil
}

func (c *Collector) outcome(t reflect.Type) (string, error) {
	v, ok := reflect.Zero(t).Interface().(Outcome)
	if !ok {
		return "", fmt.Errorf("tstype: %w: %s implements Outcome only through a pointer", ErrUnsupported, t)
	}
	okType, errType := v.OutcomeTypes()
	okExpr, err := c.expr(okType)
	if err != nil {
		return "", err
	}
	errExpr, err := c.expr(errType)
	if err != nil {
		return "", err
	}
	if other, exists := c.names[outcomeName]; exists && other != OutcomeDeclID {
		return "", fmt.Errorf("tstype: %s collides with the %s outcome type", other, outcomeName)
	}
	c.names[outcomeName] = OutcomeDeclID
	c.decls[OutcomeDeclID] = outcomeDecl
	return outcomeName + "<" + okExpr + ", " + errExpr + ">", nil
}

func (c *Collector) mapKey(t reflect.Type) (string, error) {
	if t.Name() != "" && t.PkgPath() != "" && t.Kind() == reflect.String {
		return c.named(t)
	}
	switch t.Kind() {
	case reflect.String:
		return "string", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "number", nil
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return "string", nil
	}
	return "", fmt.Errorf("tstype: %w: map key %s", ErrUnsupported, t)
}

type field struct {
	name     string
	expr     string
	optional bool
}

// objectLiteral renders the fields of struct t as a multi-line object type.
func (c *Collector) objectLiteral(t reflect.Type, indent string) (string, error) {
	fields, err := c.fields(t, indent)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteString("{\n")
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString("  ")
		b.WriteString(propertyName(f.name))
		if f.optional {
			b.WriteByte('?')
		}
		b.WriteString(": ")
		b.WriteString(f.expr)
		b.WriteString(";\n")
	}
	b.WriteString(indent)
	b.WriteString("}")
	return b.String(), nil
}

// fields lists the JSON-visible fields of t, flattening untagged embedded
// structs the way encoding/json does. Shallower fields shadow deeper ones.
func (c *Collector) fields(t reflect.Type, indent string) ([]field, error) {
	var out []field
	seen := make(map[string]bool)
	var walk func(t reflect.Type, depth int) error
	walk = func(t reflect.Type, depth int) error {
		var embedded []reflect.Type
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			tag := sf.Tag.Get("json")
			if tag == "-" {
				continue
			}
			name, opts := parseJSONTag(tag)
			if sf.Anonymous && name == "" {
				et := sf.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct {
					embedded = append(embedded, et)
					continue
				}
			}
			if !sf.IsExported() {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			if seen[name] {
				continue
			}
			seen[name] = true

			expr, err := c.fieldExpr(sf.Type, opts, indent)
			if err != nil {
				return fmt.Errorf("field %s: %w", sf.Name, err)
			}
			out = append(out, field{
				name:     name,
				expr:     expr,
				optional: opts.omit || sf.Type.Kind() == reflect.Pointer,
			})
		}
		for _, et := range embedded {
			if depth > 16 {
				return fmt.Errorf("tstype: %w: embedding too deep in %s", ErrUnsupported, t)
			}
			if err := walk(et, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collector) fieldExpr(t reflect.Type, opts tagOptions, indent string) (string, error) {
	if opts.asString {
		switch t.Kind() {
		case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return "string", nil
		}
	}
	if t.Kind() == reflect.Struct && t.Name() == "" && t.NumField() > 0 {
		return c.objectLiteral(t, indent+"  ")
	}
	return c.expr(t)
}

type tagOptions struct {
	omit     bool
	asString bool
}

func parseJSONTag(tag string) (string, tagOptions) {
	var opts tagOptions
	if tag == "" {
		return "", opts
	}
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		switch p {
		case "omitempty", "omitzero":
			opts.omit = true
		case "string":
			opts.asString = true
		}
	}
	return parts[0], opts
}

// specialType maps standard library types with custom JSON encodings.
func specialType(t reflect.Type) (string, bool) {
	switch t {
	case reflect.TypeFor[time.Time]():
		return "string", true
	case reflect.TypeFor[time.Duration]():
		return "number", true
	case reflect.TypeFor[json.RawMessage]():
		return "any", true
	case reflect.TypeFor[json.Number]():
		return "string", true
	}
	if t.Kind() == reflect.Interface {
		return "any", true
	}
	return "", false
}

func checkUnsupported(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Invalid:
		return fmt.Errorf("tstype: %w: %s", ErrUnsupported, t)
	}
	return nil
}

// typeName returns the declared TypeScript name of named type t. A name that
// would resolve to a built-in type, such as Record, gets a trailing underscore
// so references to it are still namespace-qualified.
func typeName(t reflect.Type) string {
	name := Identifier(syntheticName(t.Name()))
	if typeexpr.IsIntrinsic(name) {
		name += "_"
	}
	return name
}

// syntheticName turns a generic instantiation name such as
// "Page[example.com/api.Item]" into an identifier ("Page_Item").
func syntheticName(name string) string {
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name[:i])
	start := i
	for j := i; j <= len(name); j++ {
		if j < len(name) && !slices.Contains([]byte("[], *"), name[j]) {
			continue
		}
		b.WriteString(lastSegment(name[start:j]))
		if j < len(name) {
			switch name[j] {
			case '[', ',':
				b.WriteByte('_')
			case '*':
				b.WriteString("Ptr")
			}
		}
		start = j + 1
	}
	return b.String()
}

func lastSegment(s string) string {
	if j := strings.LastIndexByte(s, '/'); j >= 0 {
		s = s[j+1:]
	}
	if j := strings.LastIndexByte(s, '.'); j >= 0 {
		s = s[j+1:]
	}
	return s
}
