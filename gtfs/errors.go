package gtfs

import (
	"errors"
	"fmt"
)

// ErrMissingColumn reports a required column absent from a table header.
var ErrMissingColumn = errors.New("required column missing")

// ParseError pins a problem to one value in one GTFS table. Line counts
// from 1 and includes the header row, matching what editors show.
type ParseError struct {
	File  string
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line %d, field %s: %v", e.File, e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
