package normalizer

import (
	"errors"
	"fmt"
)

var (
	ErrMissingColumn   = errors.New("missing required column")
	ErrInvalidEncoding = errors.New("payload is not valid UTF-8")
	ErrFieldCount      = errors.New("wrong number of fields")
)

// ParseError aborts a snapshot build. Line is 1-based and 0 when the
// problem concerns the whole payload.
type ParseError struct {
	Feed string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", e.Feed, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Feed, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MappingError records a code that fell back to a default. It is never fatal.
type MappingError struct {
	Feed   string
	Symbol string
	Field  string
	Code   string
}

func (e MappingError) Error() string {
	return fmt.Sprintf("%s %s: unmapped %s code %q", e.Feed, e.Symbol, e.Field, e.Code)
}
