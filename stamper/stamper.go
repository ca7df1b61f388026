package stamper

import (
	"fmt"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Stamps maps stamp keys to their values.
type Stamps map[string]any

// Load reads stamp info files in order and merges them, later
// files overriding earlier ones. Lines without a space are
// skipped.
func Load(infoFiles []string) (Stamps, error) {
	const errCtx = "loading stamps"

	stamps := make(Stamps)

	for _, sf := range infoFiles {
		content, err := os.ReadFile(sf) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		stamps.parse(string(content))
	}

	return stamps, nil
}

func (st Stamps) parse(content string) {
	for line := range strings.Lines(content) {
		key, val, ok := strings.Cut(strings.TrimRight(line, "\r\n"), " ")
		if ok {
			st[key] = val
		}
	}
}

// Expand substitutes {KEY} placeholders in format.
func (st Stamps) Expand(format string) string {
	return fasttemplate.ExecuteStringStd(format, "{", "}", st)
}
