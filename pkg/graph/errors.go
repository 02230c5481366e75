package graph

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them
// so callers can branch with errors.Is.
var (
	// ErrValidation marks arguments that are well-typed but not acceptable,
	// such as an empty query, a negative depth or an empty context.
	ErrValidation = errors.New("validation error")

	// ErrType marks nil or wrongly typed arguments.
	ErrType = errors.New("type error")

	// ErrStructural marks inconsistent graph data: entities without a type,
	// relationships pointing at missing nodes, an unavailable store.
	ErrStructural = errors.New("structural error")

	// ErrNotFound marks unknown entity or graph identifiers.
	ErrNotFound = errors.New("not found")

	// ErrPatternCompile is returned when an extraction pattern fails to
	// compile. It also matches ErrStructural.
	ErrPatternCompile = fmt.Errorf("%w: pattern compilation failed", ErrStructural)
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func typeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrType, fmt.Sprintf(format, args...))
}

func structuralErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStructural, fmt.Sprintf(format, args...))
}

func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
