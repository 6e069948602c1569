package supply

import "errors"

// ErrUnknownObjective is returned for an objective name that is not reported.
var ErrUnknownObjective = errors.New("unknown objective")

// ErrVectorMismatch is returned when a capacity indicator vector names a
// component the structure does not contain.
var ErrVectorMismatch = errors.New("vector does not fit structure")
