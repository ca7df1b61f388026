// Package partials resolves partial names to template text. Names
// are looked up in an in-memory table first, then read from a
// filesystem as "{name}.{ext}". A partial that cannot be found or
// read resolves to empty text.
package partials
