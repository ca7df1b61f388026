// Package renderer interprets a mustache token stream against a stack
// of data scopes. Sections push scopes or iterate over sequences,
// inverted sections push the negated truthiness of their key, partials
// are resolved by name and rendered in place with the indentation of
// the line they sit on, and callable section values (lambdas) receive
// the raw section text together with a function that renders text
// against the current scopes.
//
// Rendering is synchronous and recursive. Partial and lambda nesting is
// bounded by Options.MaxDepth; exceeding it returns ErrDepthExceeded.
package renderer
