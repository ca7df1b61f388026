package templating

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/byte4ever/chevron/renderer"
	"github.com/byte4ever/chevron/stamper"
)

const frontMatterFence = "---"

// splitFrontMatter removes a leading "---" fenced YAML block from
// text and returns the remaining template with the decoded mapping.
// Text without a complete fence is returned unchanged.
func splitFrontMatter(text string) (string, map[string]any, error) {
	const errCtx = "reading front matter"

	first, rest, ok := strings.Cut(text, "\n")
	if !ok || strings.TrimRight(first, "\r") != frontMatterFence {
		return text, nil, nil
	}

	var (
		head strings.Builder
		pos  = len(first) + 1
	)

	for line := range strings.Lines(rest) {
		pos += len(line)

		if strings.TrimRight(line, "\r\n") != frontMatterFence {
			head.WriteString(line)
			continue
		}

		var front map[string]any

		if err := yaml.Unmarshal([]byte(head.String()), &front); err != nil {
			return "", nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return text[pos:], front, nil
	}

	return text, nil, nil
}

// loadData decodes the data file at pa. Files ending in ".json" are
// read as a single JSON value, anything else as a YAML stream with
// one value per document. An empty path yields no documents.
func loadData(pa string) ([]any, error) {
	const errCtx = "loading data"

	if pa == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(pa) //nolint:gosec // paths from CLI flags
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if strings.EqualFold(filepath.Ext(pa), ".json") {
		var doc any

		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: decoding %s: %w", errCtx, pa, err)
		}

		return []any{doc}, nil
	}

	docs, err := decodeAllDocs(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: decoding %s: %w", errCtx, pa, err)
	}

	return docs, nil
}

// decodeAllDocs decodes all YAML documents from raw bytes, skipping
// empty ones.
func decodeAllDocs(raw []byte) ([]any, error) {
	const errCtx = "decoding all docs"

	decoder := yaml.NewDecoder(bytes.NewReader(raw))

	var docs []any

	for {
		var doc any

		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		if doc == nil {
			continue
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// buildContext assembles the scope stack for a file render. Stamps,
// front matter, mapping documents and variables are merged in that
// order into one root mapping. Other documents are stacked above it,
// the last one innermost.
func buildContext(
	stamps stamper.Stamps,
	front map[string]any,
	docs []any,
	vars []string,
) (renderer.Scopes, error) {
	const errCtx = "building context"

	root := make(map[string]any, len(stamps)+len(front))
	maps.Copy(root, stamps)
	maps.Copy(root, front)

	var stacked []any

	for _, doc := range docs {
		if m, ok := doc.(map[string]any); ok {
			maps.Copy(root, m)
			continue
		}

		stacked = append(stacked, doc)
	}

	if err := resolveVars(vars, stamps, root); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	scopes := make(renderer.Scopes, 0, len(stacked)+1)
	for i := len(stacked) - 1; i >= 0; i-- {
		scopes = append(scopes, stacked[i])
	}

	return append(scopes, root), nil
}

// resolveVars processes NAME=VALUE variables. Each value is
// expanded against stamps using single-brace tags, then stored as
// NAME, with dots in NAME creating nested mappings, and under the
// "variables" mapping.
func resolveVars(
	vars []string,
	stamps stamper.Stamps,
	ctx map[string]any,
) error {
	const errCtx = "resolving variables"

	if len(vars) == 0 {
		return nil
	}

	named := make(map[string]any, len(vars))
	if prev, ok := ctx["variables"].(map[string]any); ok {
		maps.Copy(named, prev)
	}

	for _, vr := range vars {
		name, raw, ok := strings.Cut(vr, "=")
		if !ok || name == "" {
			return fmt.Errorf(
				"%s: variable must be NAME=VALUE, got %s",
				errCtx, vr,
			)
		}

		val := stamps.Expand(raw)

		setPath(ctx, strings.Split(name, "."), val)
		named[name] = val
	}

	ctx["variables"] = named

	return nil
}

// setPath stores val under the nested keys of path, replacing any
// non-mapping value met on the way.
func setPath(m map[string]any, path []string, val any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
		} else {
			next = maps.Clone(next)
		}

		m[key] = next
		m = next
	}

	m[path[len(path)-1]] = val
}
