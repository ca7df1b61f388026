// Package tokenizer turns mustache template text into a stream of tags.
// It handles the tag sigils, the standalone-line rules that elide the
// whitespace around block tags, and runtime delimiter changes. Sections
// are checked for balance while scanning; imbalance is reported as a
// *SyntaxError carrying the offending line.
package tokenizer
