package report

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when a block or row does not match the
	// fixed schema expected at its position. Parsing of the report is aborted.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEmptyInput is returned when a non-empty report was required
	ErrEmptyInput = fmt.Errorf("%w: empty report", ErrMalformedInput)
)

// MalformedError carries the offending line so a format mismatch can be
// diagnosed from the error alone.
type MalformedError struct {
	Report string // osd-tree, pg-dump, getstripe, df
	Line   int    // 1-based line number in the raw text, 0 if unknown
	Raw    string // offending line or block
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: malformed input at line %d: %s: %q", e.Report, e.Line, e.Reason, e.Raw)
	}
	return fmt.Sprintf("%s: malformed input: %s: %q", e.Report, e.Reason, e.Raw)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedInput
}

// Malformed builds a MalformedError for a tokenized line
func Malformed(report string, line Line, format string, args ...any) error {
	return &MalformedError{
		Report: report,
		Line:   line.No,
		Raw:    line.Raw,
		Reason: fmt.Sprintf(format, args...),
	}
}

// MalformedBlock builds a MalformedError for a whole block
func MalformedBlock(report string, block Block, format string, args ...any) error {
	e := &MalformedError{
		Report: report,
		Raw:    block.Raw(),
		Reason: fmt.Sprintf(format, args...),
	}
	if len(block.Lines) > 0 {
		e.Line = block.Lines[0].No
	}
	return e
}
