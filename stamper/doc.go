// Package stamper reads stamp info files: one "KEY VALUE" pair per
// line, split at the first space. Load merges several files into
// Stamps, whose Expand substitutes single-brace {KEY} placeholders
// and leaves unknown ones untouched.
package stamper
