package grammar

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBegin       = errors.New("listing does not start with _BEGIN")
	ErrUnexpectedLine     = errors.New("unexpected line")
	ErrMissingName        = errors.New("cannot match argument name")
	ErrOutputMismatch     = errors.New("cannot match command output")
	ErrMissingCommandCode = errors.New("command code not found")
	ErrUnexpectedEOF      = errors.New("unexpected end of input")
)

// ParseError locates a grammar error in the input.
type ParseError struct {
	Line    int
	Text    string
	Command string // command being parsed, if any
	Err     error
}

func (e *ParseError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("line %d: %s %s: %q", e.Line, e.Command, e.Err, e.Text)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }
