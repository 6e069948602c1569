// Package fault defines the error kinds shared by the carrier registry, the
// component catalog, the structure builder and trial evaluation. Every
// user-visible failure is an *Error whose Kind is one of the sentinels below
// and which names the carrier codes involved.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration marks a missing or invalid catalog or carrier row, an
// invalid subtype or qualifier, or a passive-bridge envelope violation.
var ErrConfiguration = errors.New("configuration error")

// ErrCapacityMismatch marks a requested flow that exceeds a component's rated capacity.
var ErrCapacityMismatch = errors.New("capacity mismatch")

// ErrCarrierMismatch marks a required carrier that no direct or passively
// bridged component can serve.
var ErrCarrierMismatch = errors.New("carrier mismatch")

// ErrUnmetEnergyBalance marks a carrier left unsatisfied after potentials,
// unlimited sources and releasable sinks were exhausted.
var ErrUnmetEnergyBalance = errors.New("unmet energy balance")

// Error is a classified failure. Kind is one of the package sentinels; Op
// names the operation that failed (e.g. "build tertiary"); Carriers lists the
// carrier codes the caller has to fix.
type Error struct {
	Kind     error
	Op       string
	Carriers []string
	Detail   string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if len(e.Carriers) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Carriers, ", "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Newf returns an *Error of the given kind with a formatted detail message.
func Newf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind around cause.
func Wrap(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// ForCarriers returns an *Error of the given kind naming the offending carriers.
// cause may be nil.
func ForCarriers(kind error, op string, carriers []string, cause error) *Error {
	cs := make([]string, len(carriers))
	copy(cs, carriers)
	return &Error{Kind: kind, Op: op, Carriers: cs, Err: cause}
}

// Carriers returns the carrier codes named by the outermost *Error in err's
// chain, or nil if there is none.
func Carriers(err error) []string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Carriers
	}
	return nil
}
