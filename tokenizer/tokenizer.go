package tokenizer

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// Tokenizer scans one template in a single forward pass. The zero
// value is not usable; create one with New.
type Tokenizer struct {
	text  string
	pos   int
	line  int
	left  string
	right string

	// standalone is true while the scanner sits at the start of
	// input or right after a line that held only a block tag.
	standalone bool

	open    []Tag
	pending []Tag
	done    bool
	err     error
}

// New returns a Tokenizer over text. Empty delimiters fall back to
// DefaultLeft and DefaultRight.
func New(text, left, right string) *Tokenizer {
	if left == "" {
		left = DefaultLeft
	}

	if right == "" {
		right = DefaultRight
	}

	return &Tokenizer{
		text:       text,
		line:       1,
		left:       left,
		right:      right,
		standalone: true,
	}
}

// Tokenize scans the whole of text and returns its tags.
func Tokenize(text, left, right string) ([]Tag, error) {
	tk := New(text, left, right)

	var tags []Tag

	for {
		tg, err := tk.Next()
		if errors.Is(err, io.EOF) {
			return tags, nil
		}

		if err != nil {
			return nil, err
		}

		tags = append(tags, tg)
	}
}

// Next returns the next tag, or io.EOF once the input is exhausted.
// After a syntax error every call returns that error.
func (tk *Tokenizer) Next() (Tag, error) {
	for len(tk.pending) == 0 {
		if tk.err != nil {
			return Tag{}, tk.err
		}

		if tk.done {
			return Tag{}, io.EOF
		}

		if err := tk.scan(); err != nil {
			tk.err = err
		}
	}

	tg := tk.pending[0]
	tk.pending = tk.pending[1:]

	return tg, nil
}

// All yields the remaining tags. A syntax error is yielded once
// and ends the sequence.
func (tk *Tokenizer) All() iter.Seq2[Tag, error] {
	return func(yield func(Tag, error) bool) {
		for {
			tg, err := tk.Next()
			if errors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(Tag{}, err)
				return
			}

			if !yield(tg, nil) {
				return
			}
		}
	}
}

// Delimiters reports the delimiters currently in effect.
func (tk *Tokenizer) Delimiters() (string, string) {
	return tk.left, tk.right
}

// scan consumes one literal and at most one tag, queueing what
// must be emitted.
func (tk *Tokenizer) scan() error {
	if tk.pos >= len(tk.text) {
		tk.done = true

		if len(tk.open) > 0 {
			return UnclosedSection(tk.open[0])
		}

		return nil
	}

	rest := tk.text[tk.pos:]

	idx := strings.Index(rest, tk.left)
	if idx < 0 {
		tk.pending = append(tk.pending, Tag{
			Kind: Literal,
			Key:  rest,
			Line: tk.line,
		})
		tk.advance(rest, len(rest))

		return nil
	}

	literal := rest[:idx]
	tagLine := tk.line + strings.Count(literal, "\n")

	if tk.standalone || strings.Contains(literal, "\n") {
		tk.standalone = isBlank(literal[strings.LastIndexByte(literal, '\n')+1:])
	}

	// after is the offset in rest just past the tag.
	after := idx + len(tk.left)
	body := rest[after:]

	kind := Variable
	brace := false

	if len(body) > 0 {
		if k, ok := sigils[body[0]]; ok {
			kind = k
			brace = body[0] == '{'
			body = body[1:]
			after++
		}
	}

	end := strings.Index(body, tk.right)
	if end < 0 {
		return syntaxErrorf(tagLine, "unclosed tag at line %d", tagLine)
	}

	key := strings.TrimSpace(body[:end])
	after += end + len(tk.right)

	switch kind {
	case NoEscape:
		if brace {
			if tk.left == DefaultLeft && tk.right == DefaultRight &&
				strings.HasPrefix(rest[after:], "}") {
				after++
			} else {
				kind = Variable
				key = strings.TrimSpace("{" + body[:end])
			}
		}

	case SetDelimiter:
		if !strings.HasSuffix(key, "=") {
			return syntaxErrorf(
				tagLine, "unclosed set delimiter tag at line %d", tagLine,
			)
		}

		dels := strings.Fields(strings.TrimSuffix(key, "="))
		if len(dels) != 2 {
			return syntaxErrorf(
				tagLine, "invalid set delimiter tag at line %d", tagLine,
			)
		}

		tk.left, tk.right = dels[0], dels[1]

	case Section, InvertedSection:
		tk.open = append(tk.open, Tag{Kind: kind, Key: key, Line: tagLine})

	case End:
		tg := Tag{Kind: End, Key: key, Line: tagLine}
		if len(tk.open) == 0 {
			return UnopenedEnd(tg)
		}

		last := tk.open[len(tk.open)-1]
		tk.open = tk.open[:len(tk.open)-1]

		if last.Key != key {
			return syntaxErrorf(
				tagLine,
				"trying to close tag %q: last opened tag is %q (line %d)",
				key, last.Key, tagLine,
			)
		}

	default:
	}

	if tk.standalone && kind != Variable && kind != NoEscape {
		tail := rest[after:]
		lineRest := tail

		nl := strings.IndexByte(tail, '\n')
		if nl >= 0 {
			lineRest = tail[:nl]
		}

		if isBlank(lineRest) {
			if nl >= 0 {
				after += nl + 1
			}

			if kind != Partial {
				literal = strings.TrimRight(literal, " \t")
			}
		} else {
			tk.standalone = false
		}
	} else {
		tk.standalone = false
	}

	if literal != "" {
		tk.pending = append(tk.pending, Tag{
			Kind: Literal,
			Key:  literal,
			Line: tk.line,
		})
	}

	if kind != Comment && kind != SetDelimiter {
		tk.pending = append(tk.pending, Tag{
			Kind: kind,
			Key:  key,
			Line: tagLine,
		})
	}

	tk.advance(rest, after)

	return nil
}

func (tk *Tokenizer) advance(rest string, n int) {
	tk.line += strings.Count(rest[:n], "\n")
	tk.pos += n
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
