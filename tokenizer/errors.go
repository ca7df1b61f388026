package tokenizer

import (
	"errors"
	"fmt"
)

var (
	// ErrBadInput is the generic category for errors caused by
	// the template rather than by the environment.
	ErrBadInput = errors.New("bad input")

	// ErrSyntax matches every template syntax error. It also
	// matches ErrBadInput.
	ErrSyntax = fmt.Errorf("template syntax error: %w", ErrBadInput)
)

// SyntaxError reports malformed template text.
type SyntaxError struct {
	Msg  string
	Line int
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

// Unwrap makes errors.Is match ErrSyntax and ErrBadInput.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func syntaxErrorf(line int, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Msg:  fmt.Sprintf(format, args...),
		Line: line,
	}
}

// UnclosedSection builds the error for a section still open when
// its token stream ends.
func UnclosedSection(open Tag) *SyntaxError {
	return syntaxErrorf(
		open.Line,
		"unclosed section %q at end of template (line %d)",
		open.Key, open.Line,
	)
}

// UnopenedEnd builds the error for an end tag with no open section.
func UnopenedEnd(end Tag) *SyntaxError {
	return syntaxErrorf(
		end.Line,
		"trying to close tag %q: looks like it was not opened (line %d)",
		end.Key, end.Line,
	)
}
