package component

import "errors"

// ErrUnknownTechnology is returned for a technology code outside the known set.
var ErrUnknownTechnology = errors.New("unknown technology")

// ErrPassive is returned when an active-only operation is called on a passive
// component, or the reverse.
var ErrPassive = errors.New("wrong component kind")
