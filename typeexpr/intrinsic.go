package typeexpr

import "sort"

// intrinsics are names built into TypeScript that must never be qualified.
// Array and Record are generic constructors: their arguments are still
// qualified.
var intrinsics = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"any":     true,
	"void":    true,
	"never":   true,
	"unknown": true,
	"null":    true,
	"Array":   true,
	"Record":  true,
}

// IsIntrinsic reports whether name is a built-in TypeScript type name.
func IsIntrinsic(name string) bool {
	return intrinsics[name]
}

// Intrinsics returns the intrinsic names in sorted order.
func Intrinsics() []string {
	names := make([]string, 0, len(intrinsics))
	for name := range intrinsics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
