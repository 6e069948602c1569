package scenario

import "errors"

// ErrNoCase is returned when the case file does not exist.
var ErrNoCase = errors.New("case file not found")

// ErrDuplicatePotential is returned when two potentials name the same carrier.
var ErrDuplicatePotential = errors.New("duplicate potential")

// ErrProfileLength is returned when a potential and the demand cover a
// different number of hours.
var ErrProfileLength = errors.New("profile length mismatch")
