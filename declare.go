package tsrpc

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/broady/tsrpc/tstype"
)

// Declare builds the descriptor for fn from its Go types and registers it in
// the default registry. It does not activate the endpoint; pass the result
// to API.Bind for that.
//
//	type LoginParams struct {
//	    Email    string   `param:"email" validate:"required,email"`
//	    Password Password `param:"password"`
//	}
//
//	var Login = tsrpc.Declare("login", func(ctx context.Context, p LoginParams) (string, error) {
//	    ...
//	})
//
// Each exported field of P is one parameter, in field order. The parameter
// name is taken from the param tag, then the json tag, then the field name
// with a lower-case first letter. Fields tagged `param:"-"` are not
// parameters.
//
// Declare panics if the name is not a valid identifier or a type has no
// TypeScript form.
func Declare[P, R any](name string, fn func(context.Context, P) (R, error)) *Endpoint[P, R] {
	return DeclareIn(DefaultRegistry(), name, fn)
}

// DeclareIn is like Declare but registers in reg.
func DeclareIn[P, R any](reg *Registry, name string, fn func(context.Context, P) (R, error)) *Endpoint[P, R] {
	ep, err := NewEndpoint(name, fn)
	if err != nil {
		panic("tsrpc: " + err.Error())
	}
	reg.Register(ep.desc)
	return ep
}

// NewEndpoint builds an endpoint without registering it.
func NewEndpoint[P, R any](name string, fn func(context.Context, P) (R, error)) (*Endpoint[P, R], error) {
	if fn == nil {
		return nil, fmt.Errorf("endpoint %q: nil function", name)
	}
	if name == "" || tstype.Identifier(name) != name {
		return nil, fmt.Errorf("endpoint %q: name must be a valid identifier", name)
	}

	pt := reflect.TypeFor[P]()
	if pt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("endpoint %q: parameters must be a struct, got %s", name, pt)
	}

	c := tstype.NewCollector()
	var (
		params []Param
		fields [][]int
		seen   = make(map[string]string)
	)
	for i := 0; i < pt.NumField(); i++ {
		f := pt.Field(i)
		if !f.IsExported() {
			continue
		}
		pname := paramName(f)
		if pname == "-" {
			continue
		}
		pname = tstype.Identifier(pname)
		if other, dup := seen[pname]; dup {
			return nil, fmt.Errorf("endpoint %q: fields %s and %s both map to parameter %q", name, other, f.Name, pname)
		}
		seen[pname] = f.Name

		expr, err := c.Expr(f.Type)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: parameter %s: %w", name, pname, err)
		}
		params = append(params, Param{Name: pname, Type: expr})
		fields = append(fields, f.Index)
	}

	resp, err := c.Expr(reflect.TypeFor[R]())
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: response: %w", name, err)
	}

	return &Endpoint[P, R]{
		desc: &Descriptor{
			Name:         name,
			Params:       params,
			Response:     resp,
			Declarations: c.Declarations(),
		},
		fn:     fn,
		fields: fields,
	}, nil
}

// paramName returns the wire name of a parameter field, or "-" if the field
// is not a parameter.
func paramName(f reflect.StructField) string {
	if tag := f.Tag.Get("param"); tag != "" {
		return tag
	}
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	return lowerFirst(f.Name)
}

// lowerFirst lower-cases a leading run of capitals, keeping the last one if
// it starts the next word: "Email" -> "email", "ID" -> "id", "URLPath" -> "urlPath".
func lowerFirst(s string) string {
	r := []rune(s)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == len(r):
		return strings.ToLower(s)
	case n > 1:
		n--
	}
	for i := range n {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
