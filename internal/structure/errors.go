package structure

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/caldera/internal/fault"
)

// ErrAlreadyBuilt is returned by a second call to Build.
var ErrAlreadyBuilt = errors.New("structure already built")

// ErrNotBuilt is returned when a frozen-structure accessor is used before a
// successful Build.
var ErrNotBuilt = errors.New("structure not built")

// ErrInvalidInputs is returned by New for inputs that cannot start a build.
var ErrInvalidInputs = errors.New("invalid structure inputs")

// invalid wraps ErrInvalidInputs as a configuration fault.
func invalid(op, format string, args ...any) error {
	return fault.Wrap(fault.ErrConfiguration, op, fmt.Errorf("%w: "+format, append([]any{ErrInvalidInputs}, args...)...))
}
