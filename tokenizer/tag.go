package tokenizer

// Default delimiters.
const (
	DefaultLeft  = "{{"
	DefaultRight = "}}"
)

// Kind identifies what a Tag does.
type Kind int

// Tag kinds. Comment and SetDelimiter are consumed by the
// tokenizer and never emitted.
const (
	Literal Kind = iota
	Variable
	NoEscape
	Section
	InvertedSection
	End
	Partial
	Comment
	SetDelimiter
)

var kindNames = [...]string{
	Literal:         "literal",
	Variable:        "variable",
	NoEscape:        "no escape",
	Section:         "section",
	InvertedSection: "inverted section",
	End:             "end",
	Partial:         "partial",
	Comment:         "comment",
	SetDelimiter:    "set delimiter",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}

	return kindNames[k]
}

// sigils maps the first character of a tag body to its kind.
// '{' is only a candidate: it is confirmed by a third closing
// brace.
var sigils = map[byte]Kind{
	'!': Comment,
	'#': Section,
	'^': InvertedSection,
	'/': End,
	'>': Partial,
	'=': SetDelimiter,
	'{': NoEscape,
	'&': NoEscape,
}

var kindSigils = map[Kind]string{
	NoEscape:        "&",
	Section:         "#",
	InvertedSection: "^",
	End:             "/",
	Partial:         ">",
	Comment:         "!",
	SetDelimiter:    "=",
}

// Tag is one element of the token stream. Key holds the literal
// text for Literal tags and the trimmed tag key otherwise. Line is
// the 1-based line on which the tag starts.
type Tag struct {
	Kind Kind
	Key  string
	Line int
}

// Source returns template text that tokenizes back to t when
// scanned with the given delimiters.
func (t Tag) Source(left, right string) string {
	if t.Kind == Literal {
		return t.Key
	}

	return left + kindSigils[t.Kind] + " " + t.Key + " " + right
}

// Source concatenates the source text of tags.
func Source(tags []Tag, left, right string) string {
	var n int
	for _, tg := range tags {
		n += len(tg.Key) + len(left) + len(right) + 3
	}

	buf := make([]byte, 0, n)
	for _, tg := range tags {
		buf = append(buf, tg.Source(left, right)...)
	}

	return string(buf)
}
