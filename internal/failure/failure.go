// Package failure classifies pipeline errors by the stage that produced them.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the category of a pipeline failure.
type Kind int

const (
	Unknown Kind = iota
	Precondition
	ModelLoad
	Inference
	Persistence
)

func (k Kind) String() string {
	switch k {
	case Precondition:
		return "precondition"
	case ModelLoad:
		return "model_load"
	case Inference:
		return "inference"
	case Persistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON and logs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err as a failure of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a failure from a formatted message.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err is a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
