package tsrpc

import (
	"maps"
	"slices"
)

// Param is one positional parameter of an endpoint.
type Param struct {
	// Name is the TypeScript parameter name.
	Name string

	// Type is a TypeScript type expression, unqualified. It references
	// declarations by bare name.
	Type string
}

// Descriptor is the typed record of one remote endpoint: its name, ordered
// parameters, response type and the declarations those types need.
//
// Descriptors are immutable once registered. The generator trusts that
// Declarations contains every type referenced by Params and Response,
// directly or through generic arguments.
type Descriptor struct {
	// Name is both the exported client function name and the namespace that
	// holds the endpoint's declarations. It must be unique.
	Name string

	// Params are in call order.
	Params []Param

	// Response is the TypeScript type expression of the result.
	Response string

	// Declarations maps a stable declaration id to its text (without the
	// export keyword). Repeated dependencies collapse to one entry.
	Declarations map[string]string
}

// clone returns a deep copy so registered descriptors cannot be mutated
// through the caller's reference.
func (d *Descriptor) clone() *Descriptor {
	return &Descriptor{
		Name:         d.Name,
		Params:       slices.Clone(d.Params),
		Response:     d.Response,
		Declarations: maps.Clone(d.Declarations),
	}
}

// DeclarationIDs returns the declaration ids in sorted order.
func (d *Descriptor) DeclarationIDs() []string {
	return slices.Sorted(maps.Keys(d.Declarations))
}

// ParamNames returns the parameter names in call order.
func (d *Descriptor) ParamNames() []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	return names
}
