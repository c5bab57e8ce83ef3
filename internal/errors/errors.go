// Package errors defines the error handling used across the opkg codebase.
package errors

import (
	"fmt"
	"strings"

	"github.com/opkgdev/opkg/internal/types"
)

// Error is the implementation of the error interface used throughout opkg.
// It is based on the design in https://commandcenter.blogspot.com/2017/12/error-handling-in-upspin.html
type Error struct {
	// Path is the workspace- or package-relative path involved in the operation, if any.
	Path types.UniquePath

	// Op is the operation being performed, e.g. "source.Resolve", "flow.Run".
	Op Op

	// Kind classifies the error per the taxonomy in §7 of the specification.
	Kind Kind

	// Err is the wrapped error, if any.
	Err error
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}
	if e.Path != "" {
		pad(b, ": ")
		b.WriteString("pkg ")
		b.WriteString(string(e.Path))
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if wrapped, ok := e.Err.(*Error); ok {
			if !wrapped.Zero() {
				pad(b, ":\n\t")
				b.WriteString(wrapped.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func pad(b *strings.Builder, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

// Zero reports whether the Error carries no information.
func (e *Error) Zero() bool {
	return e.Op == "" && e.Path == "" && e.Kind == 0 && e.Err == nil
}

// Op describes the operation being performed when an error occurred.
type Op string

// Kind classifies an error per the taxonomy of spec §7: kinds, not types.
type Kind int

const (
	Other Kind = iota
	// Validation covers bad user input or a malformed manifest.
	Validation
	// NotFound covers a missing source, resource, or workspace entry.
	NotFound
	// IO covers filesystem failures.
	IO
	// Network covers registry/git transport failures.
	Network
	// Parse covers document syntax errors (JSON/JSONC/YAML/TOML/Markdown).
	Parse
	// Conflict covers unresolvable version or target-file conflicts.
	Conflict
	// Precondition covers mutability or invariant-violating preconditions.
	Precondition
	// Cancelled covers user-initiated cancellation.
	Cancelled
	// Internal covers broken invariants in opkg itself.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Validation:
		return "validation error"
	case NotFound:
		return "not found"
	case IO:
		return "io error"
	case Network:
		return "network error"
	case Parse:
		return "parse error"
	case Conflict:
		return "conflict"
	case Precondition:
		return "precondition failed"
	case Cancelled:
		return "cancelled"
	case Internal:
		return "internal error"
	}
	return "unknown kind"
}

// E builds an *Error from its arguments. Each argument's type determines
// which field of Error it populates; at least one argument is required.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E must have at least one argument")
	}

	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case types.UniquePath:
			e.Path = a
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			e.Err = fmt.Errorf("%s", a)
		default:
			panic(fmt.Errorf("unknown type %T for value %v in call to errors.E", a, a))
		}
	}

	if wrapped, ok := e.Err.(*Error); ok {
		if e.Kind == Other {
			e.Kind = wrapped.Kind
		}
	}
	return e
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else Other.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			err = asErr.Err
			continue
		}
		break
	}
	if e == nil {
		return Other
	}
	return e.Kind
}
