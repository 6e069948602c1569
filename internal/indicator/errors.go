package indicator

import "errors"

// ErrShape is returned when assigned values do not fit the vector's layout.
var ErrShape = errors.New("vector shape mismatch")

// ErrInvalidIndicator is returned for an indicator outside the supply
// categories or a duplicate (category, code) pair.
var ErrInvalidIndicator = errors.New("invalid indicator")
