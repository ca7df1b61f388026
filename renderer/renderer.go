package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/byte4ever/chevron/scope"
	"github.com/byte4ever/chevron/tokenizer"
)

// DefaultMaxDepth bounds nested partial and lambda renders.
const DefaultMaxDepth = 256

// ErrDepthExceeded is returned when partials or lambdas nest deeper
// than Options.MaxDepth. It also matches tokenizer.ErrBadInput.
var ErrDepthExceeded = fmt.Errorf(
	"render depth exceeded: %w", tokenizer.ErrBadInput,
)

// PartialResolver returns the template text of a named partial,
// or "" when there is none.
type PartialResolver interface {
	Partial(name string) string
}

// Scopes passed as data is used as the initial scope stack,
// innermost first.
type Scopes []any

// Options configures a render. The zero value renders with default
// delimiters, HTML escaping and no partials.
type Options struct {
	Partials PartialResolver

	// Escape is applied to variable tags. Defaults to HTMLEscape.
	Escape func(string) string

	LeftDelim  string
	RightDelim string

	// Padding is inserted after every newline of literal text.
	Padding string

	// MaxDepth bounds partial and lambda nesting. Zero means
	// DefaultMaxDepth.
	MaxDepth int

	Logger *slog.Logger
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// HTMLEscape escapes & < > and ". Single quotes are left alone.
func HTMLEscape(s string) string {
	return htmlReplacer.Replace(s)
}

// Render tokenizes template and renders it against data.
func Render(template string, data any, opts Options) (string, error) {
	const errCtx = "rendering template"

	r := newRenderer(opts)

	out, err := r.render(r.tokenize(template), initialScopes(data), opts.Padding, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return out, nil
}

// RenderReader reads the whole template from in and renders it.
func RenderReader(in io.Reader, data any, opts Options) (string, error) {
	const errCtx = "rendering template"

	content, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("%s: reading template: %w", errCtx, err)
	}

	return Render(string(content), data, opts)
}

// RenderTokens renders an already tokenized template.
func RenderTokens(
	tags []tokenizer.Tag,
	data any,
	opts Options,
) (string, error) {
	const errCtx = "rendering tokens"

	r := newRenderer(opts)

	src := bodyTokens(tags, r.left, r.right)

	out, err := r.render(src, initialScopes(data), opts.Padding, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return out, nil
}

func initialScopes(data any) []any {
	switch tv := data.(type) {
	case nil:
		return []any{map[string]any{}}
	case Scopes:
		if len(tv) == 0 {
			return []any{map[string]any{}}
		}

		return append([]any(nil), tv...)
	default:
		return []any{data}
	}
}

// stream is a single-pass source of tags ending with io.EOF.
// Delimiters reports the pair in effect for the last tag read.
type stream interface {
	Next() (tokenizer.Tag, error)
	Delimiters() (string, string)
}

type tagList struct {
	tags  []tokenizer.Tag
	pos   int
	left  string
	right string
}

func (tl *tagList) Next() (tokenizer.Tag, error) {
	if tl.pos >= len(tl.tags) {
		return tokenizer.Tag{}, io.EOF
	}

	tg := tl.tags[tl.pos]
	tl.pos++

	return tg, nil
}

func (tl *tagList) Delimiters() (string, string) {
	return tl.left, tl.right
}

type renderer struct {
	partials PartialResolver
	escape   func(string) string
	left     string
	right    string
	maxDepth int
	logger   *slog.Logger
}

func newRenderer(opts Options) *renderer {
	r := &renderer{
		partials: opts.Partials,
		escape:   opts.Escape,
		left:     opts.LeftDelim,
		right:    opts.RightDelim,
		maxDepth: opts.MaxDepth,
		logger:   opts.Logger,
	}

	if r.escape == nil {
		r.escape = HTMLEscape
	}

	if r.left == "" {
		r.left = tokenizer.DefaultLeft
	}

	if r.right == "" {
		r.right = tokenizer.DefaultRight
	}

	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}

	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return r
}

func (r *renderer) tokenize(text string) stream {
	return tokenizer.New(text, r.left, r.right)
}

// bodyTokens returns a stream over scanned tags that reports left
// and right as the delimiters they were scanned with.
func bodyTokens(span []tokenizer.Tag, left, right string) stream {
	return &tagList{tags: span, left: left, right: right}
}

func push(scopes []any, v any) []any {
	return append([]any{v}, scopes...)
}

// render walks tokens against scopes. It owns scopes: pushes build
// new slices so callers' stacks are never modified.
func (r *renderer) render(
	tokens stream,
	scopes []any,
	padding string,
	depth int,
) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for {
		tg, err := tokens.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", err
		}

		switch {
		case tg.Kind == tokenizer.End:
			if len(scopes) < 2 {
				return "", tokenizer.UnopenedEnd(tg)
			}

			scopes = scopes[1:]

		case !scope.Truthy(scopes[0]) && len(scopes) != 1:
			// Inside a falsy section: only keep the stack
			// balanced for the end tags to come.
			if tg.Kind == tokenizer.Section || tg.Kind == tokenizer.InvertedSection {
				scopes = push(scopes, false)
			}

		case tg.Kind == tokenizer.Literal:
			buf.WriteString(indent(tg.Key, padding))

		case tg.Kind == tokenizer.Variable:
			v := scope.Lookup(tg.Key, scopes)
			if b, ok := v.(bool); ok && b && tg.Key == "." && len(scopes) > 1 {
				// An inverted section pushed true in place of
				// the real value; use the scope below it.
				v = scopes[1]
			}

			buf.WriteString(r.escape(scope.Text(v)))

		case tg.Kind == tokenizer.NoEscape:
			buf.WriteString(scope.Text(scope.Lookup(tg.Key, scopes)))

		case tg.Kind == tokenizer.Section:
			v := scope.Lookup(tg.Key, scopes)

			if fn, ok := scope.AsLambda(v); ok {
				out, err := r.lambda(fn, tg, tokens, scopes, depth)
				if err != nil {
					return "", err
				}

				buf.WriteString(out)

				continue
			}

			if scope.IsSequence(v) {
				out, err := r.list(v, tg, tokens, scopes, padding, depth)
				if err != nil {
					return "", err
				}

				buf.WriteString(out)

				continue
			}

			scopes = push(scopes, v)

		case tg.Kind == tokenizer.InvertedSection:
			scopes = push(scopes, !scope.Truthy(scope.Lookup(tg.Key, scopes)))

		case tg.Kind == tokenizer.Partial:
			out, err := r.partial(tg, buf.B, scopes, padding, depth)
			if err != nil {
				return "", err
			}

			buf.WriteString(out)

		default:
		}
	}

	return buf.String(), nil
}

// list renders the section body once per element of v.
func (r *renderer) list(
	v any,
	open tokenizer.Tag,
	tokens stream,
	scopes []any,
	padding string,
	depth int,
) (string, error) {
	left, right := tokens.Delimiters()

	span, err := collectSpan(open, tokens)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	for _, elem := range scope.Elements(v) {
		out, err := r.render(bodyTokens(span, left, right), push(scopes, elem), padding, depth)
		if err != nil {
			return "", err
		}

		sb.WriteString(out)
	}

	return sb.String(), nil
}

// lambda hands the unrendered section body to fn, written with the
// delimiters active at the section tag. Text passed back for
// rendering is read with those same delimiters. The result is
// inserted as is.
func (r *renderer) lambda(
	fn scope.Lambda,
	open tokenizer.Tag,
	tokens stream,
	scopes []any,
	depth int,
) (string, error) {
	left, right := tokens.Delimiters()

	span, err := collectSpan(open, tokens)
	if err != nil {
		return "", err
	}

	body := tokenizer.Source(span, left, right)

	r.logger.Debug("calling lambda", "key", open.Key, "line", open.Line)

	return fn(body, func(text string, data any) (string, error) {
		if depth+1 > r.maxDepth {
			return "", ErrDepthExceeded
		}

		stack := scopes
		if data != nil {
			stack = push(scopes, data)
		}

		src := bodyTokens(span, left, right)
		if text != body {
			src = tokenizer.New(text, left, right)
		}

		return r.render(src, stack, "", depth+1)
	})
}

// partial renders the named partial against the current scopes.
// When the current output line holds only whitespace, that
// whitespace indents every line of the partial.
func (r *renderer) partial(
	tg tokenizer.Tag,
	output []byte,
	scopes []any,
	padding string,
	depth int,
) (string, error) {
	if depth+1 > r.maxDepth {
		return "", ErrDepthExceeded
	}

	var text string
	if r.partials != nil {
		text = r.partials.Partial(tg.Key)
	}

	if text == "" {
		r.logger.Debug("empty partial", "name", tg.Key, "line", tg.Line)

		return "", nil
	}

	nl := bytes.LastIndexByte(output, '\n')
	left := string(output[nl+1:])
	indented := left != "" && strings.TrimSpace(left) == ""

	partPadding := padding

	if indented {
		// Output after a newline already carries padding.
		if nl >= 0 {
			partPadding = left
		} else {
			partPadding = padding + left
		}
	}

	out, err := r.render(r.tokenize(text), scopes, partPadding, depth+1)
	if err != nil {
		return "", err
	}

	if indented {
		out = strings.TrimRight(out, " \t")
	}

	return out, nil
}

// collectSpan consumes tokens up to the end tag matching open and
// returns the tags in between.
func collectSpan(open tokenizer.Tag, tokens stream) ([]tokenizer.Tag, error) {
	var span []tokenizer.Tag

	depth := 0

	for {
		tg, err := tokens.Next()
		if errors.Is(err, io.EOF) {
			return nil, tokenizer.UnclosedSection(open)
		}

		if err != nil {
			return nil, err
		}

		switch tg.Kind {
		case tokenizer.Section, tokenizer.InvertedSection:
			depth++
		case tokenizer.End:
			if depth == 0 {
				return span, nil
			}

			depth--
		default:
		}

		span = append(span, tg)
	}
}

func indent(text, padding string) string {
	if padding == "" {
		return text
	}

	return strings.ReplaceAll(text, "\n", "\n"+padding)
}
