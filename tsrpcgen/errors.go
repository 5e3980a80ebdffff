package tsrpcgen

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateExportName is returned when two descriptors that pass the
	// filter share a name.
	ErrDuplicateExportName = errors.New("tsrpcgen: duplicate export name")

	// ErrUnexportedActivation is matched by *UnexportedActivationError.
	ErrUnexportedActivation = errors.New("tsrpcgen: activated endpoint not exported")
)

// UnexportedActivationError lists every activated name that did not appear
// in the generated document. It is only returned when activation is
// enforced.
type UnexportedActivationError struct {
	// Names are sorted.
	Names []string
}

func (e *UnexportedActivationError) Error() string {
	return "tsrpcgen: activated but not exported: " + strings.Join(e.Names, ", ") +
		" (declare them in the generator's registry, or disable enforcement)"
}

func (e *UnexportedActivationError) Is(target error) bool {
	return target == ErrUnexportedActivation
}
