package flow

import "errors"

// ErrInvalidPlacement is returned for an unknown placement or a disallowed
// (in, out) placement pair.
var ErrInvalidPlacement = errors.New("invalid placement")

// ErrInvalidProfile is returned for an empty profile or one holding NaN or infinite values.
var ErrInvalidProfile = errors.New("invalid profile")

// ErrIncompatible is returned when combining flows of different carriers or horizons.
var ErrIncompatible = errors.New("incompatible flows")
