// Package errs defines the error taxonomy shared by the reasoning core.
//
// Every failure surfaced by a component carries a Kind. Kinds are grouped into
// classes that tell the caller what to do next: invalid input should be fixed
// by the caller, non-fatal conditions can be ignored, recoverable conditions
// can be retried with a larger budget, and fatal conditions abort the session.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a category of failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedIRI
	KindUnknownEntityReference
	KindDuplicateAxiom
	KindResourceExceeded
	KindArenaCorruption
	KindInvalidQuery
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindMalformedIRI:
		return "malformed_iri"
	case KindUnknownEntityReference:
		return "unknown_entity_reference"
	case KindDuplicateAxiom:
		return "duplicate_axiom"
	case KindResourceExceeded:
		return "resource_exceeded"
	case KindArenaCorruption:
		return "arena_corruption"
	case KindInvalidQuery:
		return "invalid_query"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Class groups kinds by how a caller is expected to react.
type Class int

const (
	ClassInvalid Class = iota
	ClassNonFatal
	ClassRecoverable
	ClassFatal
)

// Class returns the reaction class for the kind.
func (k Kind) Class() Class {
	switch k {
	case KindDuplicateAxiom:
		return ClassNonFatal
	case KindResourceExceeded:
		return ClassRecoverable
	case KindArenaCorruption, KindUnknown:
		return ClassFatal
	default:
		return ClassInvalid
	}
}

// Sentinel errors, one per kind. *Error values match them with errors.Is.
var (
	ErrMalformedIRI           = errors.New("malformed IRI")
	ErrUnknownEntityReference = errors.New("unknown entity reference")
	ErrDuplicateAxiom         = errors.New("duplicate axiom")
	ErrResourceExceeded       = errors.New("resource budget exceeded")
	ErrArenaCorruption        = errors.New("arena corruption")
	ErrInvalidQuery           = errors.New("invalid query")
	ErrInvalidArgument        = errors.New("invalid argument")
)

func sentinel(k Kind) error {
	switch k {
	case KindMalformedIRI:
		return ErrMalformedIRI
	case KindUnknownEntityReference:
		return ErrUnknownEntityReference
	case KindDuplicateAxiom:
		return ErrDuplicateAxiom
	case KindResourceExceeded:
		return ErrResourceExceeded
	case KindArenaCorruption:
		return ErrArenaCorruption
	case KindInvalidQuery:
		return ErrInvalidQuery
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return nil
	}
}

// Error is the structured error returned by reasoning components.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "ontology.AddAxiom"
	Detail string
	Err    error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := sentinel(e.Kind); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := sentinel(e.Kind)
	return s != nil && target == s
}

// New builds an *Error with a formatted detail message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and operation to an underlying error.
// It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{
		KindMalformedIRI, KindUnknownEntityReference, KindDuplicateAxiom,
		KindResourceExceeded, KindArenaCorruption, KindInvalidQuery, KindInvalidArgument,
	} {
		if errors.Is(err, sentinel(k)) {
			return k
		}
	}
	return KindUnknown
}

// IsNonFatal reports whether err can be ignored by the caller.
func IsNonFatal(err error) bool {
	return err != nil && KindOf(err).Class() == ClassNonFatal
}

// IsRecoverable reports whether err may succeed with a larger budget.
func IsRecoverable(err error) bool {
	return err != nil && KindOf(err).Class() == ClassRecoverable
}

// IsFatal reports whether err invalidates the current session.
func IsFatal(err error) bool {
	return err != nil && KindOf(err).Class() == ClassFatal
}

// IsInvalid reports whether err was caused by bad caller input.
func IsInvalid(err error) bool {
	return err != nil && KindOf(err).Class() == ClassInvalid
}
