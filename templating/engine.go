package templating

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/byte4ever/chevron/partials"
	"github.com/byte4ever/chevron/renderer"
	"github.com/byte4ever/chevron/stamper"
)

// Engine renders mustache templates with partials read from a
// directory or an in-memory map. The zero value renders with "{{"
// and "}}" and reads partials from the working directory by bare
// name; New sets the "mustache" extension.
type Engine struct {
	LeftDelim  string
	RightDelim string

	// PartialsPath is the directory partial files are read from.
	PartialsPath string

	// PartialsExt is the partial file extension, without the dot.
	// Empty means partial names are file names.
	PartialsExt string

	// Partials are consulted before PartialsPath.
	Partials map[string]string

	StampInfoFiles []string

	// Stdin and Stdout replace the process streams when set.
	Stdin  io.Reader
	Stdout io.Writer

	Logger *slog.Logger
}

// New returns an Engine reading "*.mustache" partials from the
// working directory.
func New() *Engine {
	return &Engine{
		PartialsPath: ".",
		PartialsExt:  partials.DefaultExt,
	}
}

// Render renders template against data.
func (en *Engine) Render(template string, data any) (string, error) {
	return renderer.Render(template, data, en.options())
}

// RenderReader renders the template read from in against data.
func (en *Engine) RenderReader(in io.Reader, data any) (string, error) {
	return renderer.RenderReader(in, data, en.options())
}

// RenderFile renders the template at tplPath, or stdin when tplPath
// is empty. The render context merges, from lowest to highest
// precedence, stamps, the template front matter, the documents of
// dataPath and vars given as NAME=VALUE.
func (en *Engine) RenderFile(
	tplPath string,
	dataPath string,
	vars []string,
) (string, error) {
	const errCtx = "rendering file"

	stamps, err := stamper.Load(en.StampInfoFiles)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	content, err := en.readTemplate(tplPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	tpl, front, err := splitFrontMatter(string(content))
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	docs, err := loadData(dataPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	scopes, err := buildContext(stamps, front, docs, vars)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	en.logger().Debug(
		"rendering",
		"template", tplPath,
		"data", dataPath,
		"scopes", len(scopes),
	)

	out, err := en.Render(tpl, scopes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return out, nil
}

// Expand renders the template at tplPath and writes the result to
// outPath, or to stdout when outPath is empty. The file is replaced
// atomically and receives mode 0644, or 0755 when executable is
// true.
func (en *Engine) Expand(
	tplPath string,
	outPath string,
	dataPath string,
	vars []string,
	executable bool,
) error {
	const errCtx = "expanding template"

	out, err := en.RenderFile(tplPath, dataPath, vars)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := en.writeOutput(outPath, out, executable); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func (en *Engine) options() renderer.Options {
	ld := partials.New(en.Partials, en.PartialsPath, en.PartialsExt)
	ld.Logger = en.logger()

	return renderer.Options{
		Partials:   ld,
		LeftDelim:  en.LeftDelim,
		RightDelim: en.RightDelim,
		Logger:     en.logger(),
	}
}

func (en *Engine) logger() *slog.Logger {
	if en.Logger != nil {
		return en.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readTemplate reads the template from a file path. If
// tplPath is empty it reads from stdin.
func (en *Engine) readTemplate(tplPath string) ([]byte, error) {
	const errCtx = "reading template"

	if tplPath != "" {
		content, err := os.ReadFile(tplPath) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return content, nil
	}

	in := en.Stdin
	if in == nil {
		in = os.Stdin
	}

	content, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("%s: reading stdin: %w", errCtx, err)
	}

	return content, nil
}

func (en *Engine) writeOutput(
	outPath string,
	content string,
	executable bool,
) error {
	const errCtx = "writing output"

	if outPath == "" {
		out := en.Stdout
		if out == nil {
			out = os.Stdout
		}

		if _, err := io.WriteString(out, content); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		return nil
	}

	if err := atomic.WriteFile(
		outPath, strings.NewReader(content),
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	var perm os.FileMode = 0o644
	if executable {
		perm = 0o755
	}

	if err := os.Chmod(outPath, perm); err != nil { //nolint:gosec // output is meant to be readable
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
