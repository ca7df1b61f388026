package renderer_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/chevron/renderer"
	"github.com/byte4ever/chevron/scope"
	"github.com/byte4ever/chevron/tokenizer"
)

type yesNo bool

func (yn yesNo) String() string {
	if yn {
		return "yes"
	}

	return "no"
}

// render renders with partials from a map and fails the test on
// error.
func render(
	tb testing.TB,
	template string,
	data any,
	partials map[string]string,
) string {
	tb.Helper()

	got, err := renderer.Render(
		template,
		data,
		renderer.Options{Partials: mapPartials(partials)},
	)
	require.NoError(tb, err)

	return got
}

func TestRender_escaping(t *testing.T) {
	t.Parallel()

	got := render(t, "{{x}}", map[string]any{"x": `<b>&"'`}, nil)

	assert.Equal(t, `&lt;b&gt;&amp;&quot;'`, got)
}

func TestRender_no_escape_forms(t *testing.T) {
	t.Parallel()

	data := map[string]any{"x": "<b>"}

	assert.Equal(t, "<b>", render(t, "{{{x}}}", data, nil))
	assert.Equal(t, "<b>", render(t, "{{& x }}", data, nil))
}

func TestRender_list_section_expands(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{#a}}{{.}}{{/a}}",
		map[string]any{"a": []any{1, 2, 3}},
		nil,
	)

	assert.Equal(t, "123", got)
}

func TestRender_typed_slices_iterate(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{#names}}<{{.}}>{{/names}}",
		map[string]any{"names": []string{"a", "b"}},
		nil,
	)

	assert.Equal(t, "<a><b>", got)
}

func TestRender_zero_suppresses_section_but_prints(t *testing.T) {
	t.Parallel()

	got := render(t, "{{#z}}x{{/z}}{{z}}", map[string]any{"z": 0}, nil)

	assert.Equal(t, "0", got)
}

func TestRender_falsy_values(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"null":  nil,
		"false": false,
		"list":  []any{},
		"dict":  map[string]any{},
		"zero":  0,
	}

	got := render(t, "{{null}}{{false}}{{list}}{{dict}}{{zero}}", data, nil)

	assert.Equal(t, "false0", got)
}

func TestRender_inverted_sections(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"no",
		render(t, "{{^a}}no{{/a}}", map[string]any{"a": []any{}}, nil),
	)
	assert.Equal(
		t,
		"",
		render(t, "{{^a}}no{{/a}}", map[string]any{"a": []any{1}}, nil),
	)
}

func TestRender_dotted_lookup(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "v"}},
	}

	assert.Equal(t, "v", render(t, "{{a.b.c}}", data, nil))
	assert.Equal(t, "", render(t, "{{a.b.x}}", data, nil))
}

func TestRender_indexed_lookup(t *testing.T) {
	t.Parallel()

	data := map[string]any{"count": []any{5, 4, 3, 2, 1}}

	got := render(
		t,
		"count {{count.0}}, {{count.1}}, {{count.100}}, {{nope.0}}",
		data,
		nil,
	)

	assert.Equal(t, "count 5, 4, , ", got)
}

func TestRender_struct_data(t *testing.T) {
	t.Parallel()

	type item struct {
		Name string `json:"name"`
	}

	type page struct {
		Title string
		Items []item
	}

	got := render(
		t,
		"{{Title}}:{{#Items}} {{name}}{{/Items}}",
		page{Title: "T", Items: []item{{Name: "a"}, {Name: "b"}}},
		nil,
	)

	assert.Equal(t, "T: a b", got)
}

func TestRender_nested_sections_with_same_key(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"A{{#x}}B{{#x}}{{.}}{{/x}}C{{/x}}D",
		map[string]any{"x": []any{"z", "x"}},
		nil,
	)

	assert.Equal(t, "ABzxCBzxCD", got)
}

func TestRender_nested_list_recursion(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"1": map[string]any{
			"2": []any{
				map[string]any{"data": []any{"1", "2", "3"}},
			},
		},
	}

	got := render(
		t,
		"{{# 1.2 }}{{# data }}{{.}}{{/ data }}{{/ 1.2 }}",
		data,
		nil,
	)

	assert.Equal(t, "123", got)
}

func TestRender_listed_data(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{# . }}({{ . }}){{/ . }}",
		[]any{1, 2, 3, 4, 5},
		nil,
	)

	assert.Equal(t, "(1)(2)(3)(4)(5)", got)
}

func TestRender_inverted_coercion_falls_back_one_scope(
	t *testing.T,
) {
	t.Parallel()

	data := map[string]any{
		"object": []any{
			"foo", "bar", map[string]any{"child": true}, "baz",
		},
	}

	got := render(
		t,
		"{{#object}}{{^child}}{{.}}{{/child}}{{/object}}",
		data,
		nil,
	)

	assert.Equal(t, "foobarbaz", got)
}

func TestRender_delimiter_switch_scoped_forward(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{=<% %>=}}<%x%>{{y}}",
		map[string]any{"x": "X", "y": "Y"},
		nil,
	)

	assert.Equal(t, "X{{y}}", got)
}

func TestRender_custom_default_delimiters(t *testing.T) {
	t.Parallel()

	got, err := renderer.Render(
		"<%#a%><%b%><%/a%> {{b}}",
		map[string]any{"a": map[string]any{"b": "in"}, "b": "out"},
		renderer.Options{LeftDelim: "<%", RightDelim: "%>"},
	)
	require.NoError(t, err)

	assert.Equal(t, "in {{b}}", got)
}

func TestRender_partial_indentation(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"\t{{> count }}",
		nil,
		map[string]string{"count": "\tone\n\ttwo"},
	)

	assert.Equal(t, "\t\tone\n\t\ttwo", got)
}

func TestRender_iterator_scope_indentation(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{> count }}",
		map[string]any{"thing": []any{"foo", "bar", "baz"}},
		map[string]string{
			"count":      "    {{> iter_scope }}",
			"iter_scope": "foobar\n{{#thing}}\n {{.}}\n{{/thing}}",
		},
	)

	assert.Equal(t, "    foobar\n     foo\n     bar\n     baz\n", got)
}

func TestRender_missing_partial_and_key(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"before, {{> with_missing_key }}, after{{> absent }}",
		nil,
		map[string]string{
			"with_missing_key": "{{#missing_key}}bloop{{/missing_key}}",
		},
	)

	assert.Equal(t, "before, , after", got)
}

func TestRender_partial_does_not_change_caller_scopes(
	t *testing.T,
) {
	t.Parallel()

	got := render(
		t,
		"{{> p }}{{name}}",
		map[string]any{
			"name":  "outer",
			"inner": map[string]any{"name": "inner"},
		},
		map[string]string{"p": "{{#inner}}{{name}}{{/inner}}-"},
	)

	assert.Equal(t, "inner-outer", got)
}

func TestRender_passthrough_and_idempotence(t *testing.T) {
	t.Parallel()

	text := "plain text\n  with } braces { and 'quotes' & <tags>\n"

	assert.Equal(t, text, render(t, text, map[string]any{"x": 1}, nil))

	once := render(t, "Hello {{name}}!", map[string]any{"name": "you"}, nil)
	twice := render(t, once, map[string]any{"name": "other"}, nil)

	assert.Equal(t, once, twice)
}

func TestRender_scopes_data(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{a}}-{{b}}",
		renderer.Scopes{
			map[string]any{"a": 1},
			map[string]any{"a": 2, "b": 3},
		},
		nil,
	)

	assert.Equal(t, "1-3", got)
}

func TestRender_custom_escape_and_padding(t *testing.T) {
	t.Parallel()

	got, err := renderer.Render(
		"{{x}}|{{{x}}}\nnext",
		map[string]any{"x": "ab"},
		renderer.Options{
			Escape:  strings.ToUpper,
			Padding: "  ",
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "AB|ab\n  next", got)
}

func TestRender_syntax_errors(t *testing.T) {
	t.Parallel()

	for _, tpl := range []string{"{{#a}}x", "{{#a}}x{{/b}}", "x {{/a}}"} {
		_, err := renderer.Render(tpl, nil, renderer.Options{})

		require.Error(t, err, tpl)
		assert.ErrorIs(t, err, tokenizer.ErrSyntax)
		assert.ErrorIs(t, err, tokenizer.ErrBadInput)
		assert.Contains(t, err.Error(), "rendering template")
	}
}

func TestRender_syntax_error_inside_list_section(t *testing.T) {
	t.Parallel()

	_, err := renderer.Render(
		"{{#a}}{{.}}",
		map[string]any{"a": []any{1}},
		renderer.Options{},
	)

	require.ErrorIs(t, err, tokenizer.ErrSyntax)
}

func TestRender_recursive_partial_hits_depth_limit(t *testing.T) {
	t.Parallel()

	_, err := renderer.Render(
		"{{> loop }}",
		nil,
		renderer.Options{
			Partials: mapPartials{"loop": "x{{> loop }}"},
			MaxDepth: 10,
		},
	)

	require.ErrorIs(t, err, renderer.ErrDepthExceeded)
	assert.ErrorIs(t, err, tokenizer.ErrBadInput)
}

func TestRenderTokens(t *testing.T) {
	t.Parallel()

	tags, err := tokenizer.Tokenize("{{#l}}[{{.}}]{{/l}}", "", "")
	require.NoError(t, err)

	data := map[string]any{"l": []any{"a", "b"}}

	for range 2 {
		got, err := renderer.RenderTokens(tags, data, renderer.Options{})
		require.NoError(t, err)
		assert.Equal(t, "[a][b]", got)
	}
}

func TestRenderTokens_unbalanced(t *testing.T) {
	t.Parallel()

	_, err := renderer.RenderTokens(
		[]tokenizer.Tag{{Kind: tokenizer.End, Key: "x", Line: 1}},
		nil,
		renderer.Options{},
	)
	require.ErrorIs(t, err, tokenizer.ErrSyntax)

	_, err = renderer.RenderTokens(
		[]tokenizer.Tag{{Kind: tokenizer.Section, Key: "l", Line: 1}},
		map[string]any{"l": []any{1}},
		renderer.Options{},
	)
	require.ErrorIs(t, err, tokenizer.ErrSyntax)
}

func TestRenderReader(t *testing.T) {
	t.Parallel()

	got, err := renderer.RenderReader(
		strings.NewReader("Hi {{who}}"),
		map[string]any{"who": "reader"},
		renderer.Options{},
	)
	require.NoError(t, err)

	assert.Equal(t, "Hi reader", got)
}

const callableTemplate = "{{{postcode}}} {{#first}} {{{city}}} || {{{town}}} " +
	"|| {{{village}}} || {{{state}}} {{/first}}"

func firstNonEmpty(s string) string {
	for _, part := range strings.Split(s, " || ") {
		if p := strings.TrimSpace(part); p != "" {
			return p
		}
	}

	return ""
}

func TestRender_lambda_receives_raw_text(t *testing.T) {
	t.Parallel()

	var content string

	data := map[string]any{
		"postcode": "1234",
		"city":     "Mustache City",
		"first": scope.Lambda(func(text string, _ scope.RenderFunc) (string, error) {
			content = text
			return "not implemented", nil
		}),
	}

	got := render(t, callableTemplate, data, nil)

	assert.Equal(t, "1234 not implemented", got)
	assert.Equal(
		t,
		" {{& city }} || {{& town }} || {{& village }} || {{& state }} ",
		content,
	)
}

func TestRender_lambda_renders_content(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"postcode": "1234",
		"town":     "Mustache Town",
		"state":    "Nowhere",
		"first": func(text string, render scope.RenderFunc) (string, error) {
			out, err := render(text, nil)
			if err != nil {
				return "", err
			}

			return firstNonEmpty(out), nil
		},
	}

	assert.Equal(t, "1234 Mustache Town", render(t, callableTemplate, data, nil))
}

func TestRender_lambda_injects_scope(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"postcode": "1234",
		"town":     "Mustache Town",
		"first": func(text string, render scope.RenderFunc) string {
			out, _ := render( //nolint:errcheck // template is known good
				text,
				map[string]any{"city": "Injected City"},
			)

			return firstNonEmpty(out)
		},
	}

	assert.Equal(t, "1234 Injected City", render(t, callableTemplate, data, nil))
}

func TestRender_lambda_renders_partials(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"function": func(text string, render scope.RenderFunc) (string, error) {
			return render(text, nil)
		},
	}

	got := render(
		t,
		"{{#function}}{{>partial}}{{!comment}}{{/function}}",
		data,
		map[string]string{"partial": "partial content"},
	)

	assert.Equal(t, "partial content", got)
}

func TestRender_lambda_output_is_not_escaped(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"bold": func(text string) string { return "<b>" + text + "</b>" },
	}

	assert.Equal(t, "<b>hi</b>!", render(t, "{{#bold}}hi{{/bold}}!", data, nil))
}

func TestRender_lambda_rerenders_body_tokens(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"x": "value",
		"wrap": func(text string, render scope.RenderFunc) (string, error) {
			return render(text, nil)
		},
	}

	// The body was scanned with <% %>; rendering it again must not
	// reinterpret {{x}} under the default delimiters.
	got := render(t, "{{=<% %>=}}<%#wrap%>{{x}}<%x%><%/wrap%>", data, nil)

	assert.Equal(t, "{{x}}value", got)
}

func TestRender_lambda_body_uses_section_delimiters(t *testing.T) {
	t.Parallel()

	var seen []string

	data := map[string]any{
		"x":    "value",
		"list": []any{1, 2},
		"wrap": func(text string, render scope.RenderFunc) (string, error) {
			seen = append(seen, text)
			return render("["+text+"]", nil)
		},
	}

	got := render(t, "{{=<% %>=}}<%#wrap%>{{x}}<%x%><%/wrap%>", data, nil)

	assert.Equal(t, "[{{x}}value]", got)
	assert.Equal(t, []string{"{{x}}<% x %>"}, seen)

	got = render(
		t,
		"{{=<% %>=}}<%#list%><%#wrap%>{{x}}<%.%><%/wrap%><%/list%>",
		data,
		nil,
	)

	assert.Equal(t, "[{{x}}1][{{x}}2]", got)
}

func TestRenderTokens_lambda_uses_option_delimiters(t *testing.T) {
	t.Parallel()

	tags, err := tokenizer.Tokenize("<%#wrap%>{{x}}<%x%><%/wrap%>", "<%", "%>")
	require.NoError(t, err)

	got, err := renderer.RenderTokens(
		tags,
		map[string]any{
			"x": "v",
			"wrap": func(text string, render scope.RenderFunc) (string, error) {
				return render(text+"!", nil)
			},
		},
		renderer.Options{LeftDelim: "<%", RightDelim: "%>"},
	)
	require.NoError(t, err)

	assert.Equal(t, "{{x}}v!", got)
}

func TestRender_named_false_prints_itself(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"{{t}} {{f}} {{b}} {{#f}}hidden{{/f}}",
		map[string]any{"t": yesNo(true), "f": yesNo(false), "b": false},
		nil,
	)

	assert.Equal(t, "yes no false ", got)
}

func TestRender_callable_variable_is_empty(t *testing.T) {
	t.Parallel()

	got := render(
		t,
		"[{{f}}][{{{f}}}]",
		map[string]any{"f": func(s string) string { return s }},
		nil,
	)

	assert.Equal(t, "[][]", got)
}

func TestRender_lambda_errors_propagate(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	_, err := renderer.Render(
		"{{#f}}x{{/f}}",
		map[string]any{
			"f": func(string, scope.RenderFunc) (string, error) {
				return "", errBoom
			},
		},
		renderer.Options{},
	)

	require.ErrorIs(t, err, errBoom)
}

func TestRender_lambda_skipped_in_falsy_section(t *testing.T) {
	t.Parallel()

	called := false

	data := map[string]any{
		"off": false,
		"f": func(text string) string {
			called = true
			return text
		},
	}

	assert.Equal(t, "", render(t, "{{#off}}{{#f}}x{{/f}}{{/off}}", data, nil))
	assert.False(t, called)
}

func TestHTMLEscape(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "&amp;lt;", renderer.HTMLEscape("&lt;"))
	assert.Equal(t, "it's", renderer.HTMLEscape("it's"))
}

func FuzzRender_passthrough(f *testing.F) {
	f.Add("plain")
	f.Add("a\n  b\n")
	f.Add("} { }")
	f.Add("")

	f.Fuzz(func(t *testing.T, text string) {
		if strings.Contains(text, "{{") {
			return
		}

		got, err := renderer.Render(text, map[string]any{"a": 1}, renderer.Options{})
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})
}

func FuzzRender(f *testing.F) {
	f.Add("{{#a}}{{.}}{{/a}}")
	f.Add("{{^a}}{{b}}{{/a}}")
	f.Add("{{> p }}")
	f.Add("{{=<% %>=}}<%a%>")
	f.Add("{{")

	f.Fuzz(func(t *testing.T, text string) {
		_, err := renderer.Render(
			text,
			map[string]any{"a": []any{1, "x"}, "b": map[string]any{"c": 0}},
			renderer.Options{
				Partials: mapPartials{"p": "{{#a}}{{> p }}{{/a}}"},
				MaxDepth: 8,
			},
		)
		if err != nil {
			assert.ErrorIs(t, err, tokenizer.ErrBadInput)
		}
	})
}
