// Package faults defines the error kinds reported per image job.
package faults

import (
	"errors"
	"strings"
)

type Kind int

const (
	Unexpected Kind = iota
	NotFound
	Decode
	Network
	Remote
	Render
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Decode:
		return "decode"
	case Network:
		return "network"
	case Remote:
		return "remote"
	case Render:
		return "render"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Status is only set for Remote errors.
type Error struct {
	Kind   Kind
	Path   string
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, path, msg string, err error) *Error {
	return &Error{Kind: kind, Path: path, Msg: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain. Unclassified
// errors are Unexpected.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unexpected
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Classify wraps err as kind unless it already carries a classification.
func Classify(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: kind, Path: path, Err: err}
}
