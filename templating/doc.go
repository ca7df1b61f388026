// Package templating renders mustache templates from files. The
// Engine type holds delimiters, the partials directory and
// extension, in-memory partials and stamp info files.
//
// Engine.Expand reads a template (or stdin), strips a leading "---"
// fenced YAML front matter block, loads a JSON or multi-document
// YAML data file, expands NAME=VALUE variables against stamps with
// single-brace tags, renders the result and writes it to stdout or
// atomically to an output file.
package templating
