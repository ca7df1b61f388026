// Package scope resolves mustache keys against a stack of context
// values. A context value is one of a closed set of shapes: null,
// scalar, mapping, sequence, object (struct or Accessor) or callable
// (Lambda). Lookup walks dotted paths across that set, Truthy decides
// section behaviour and Text turns a resolved value into output text.
package scope
