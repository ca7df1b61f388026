// Command chevron renders a mustache template with data from a JSON
// or YAML file, stamp info files and NAME=VALUE variables.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/byte4ever/chevron/partials"
	"github.com/byte4ever/chevron/templating"
	"github.com/byte4ever/chevron/tokenizer"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "dev"

type arrayFlags []string

func (af *arrayFlags) String() string {
	return strings.Join(*af, ",")
}

func (af *arrayFlags) Set(value string) error {
	*af = append(*af, value)
	return nil
}

func main() {
	if err := run(); err != nil {
		var synErr *tokenizer.SyntaxError
		if errors.As(err, &synErr) {
			slog.Error("syntax error", "line", synErr.Line, "error", err)
		} else {
			slog.Error("fatal", "error", err)
		}

		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running chevron"

	var (
		stampInfoFile arrayFlags
		variable      arrayFlags
		partialFiles  arrayFlags
	)

	flag.Var(
		&stampInfoFile,
		"stamp_info_file",
		"Stamp info file path (repeatable)",
	)

	flag.Var(
		&variable,
		"variable",
		"Variable in NAME=VALUE format (repeatable)",
	)

	flag.Var(
		&partialFiles,
		"partial",
		"Partial in NAME=FILE format (repeatable)",
	)

	data := flag.String(
		"data", "",
		"JSON or YAML data file",
	)
	tpl := flag.String(
		"template", "",
		"Template file path (stdin if empty)",
	)
	partialsPath := flag.String(
		"path", ".",
		"Directory partials are read from",
	)
	partialsExt := flag.String(
		"ext", partials.DefaultExt,
		"Partial file extension",
	)
	leftDelim := flag.String(
		"left_delimiter", tokenizer.DefaultLeft,
		"Left tag delimiter",
	)
	rightDelim := flag.String(
		"right_delimiter", tokenizer.DefaultRight,
		"Right tag delimiter",
	)
	output := flag.String(
		"output", "",
		"Output file path (stdout if empty)",
	)
	executable := flag.Bool(
		"executable", false,
		"Set executable bit on output file",
	)
	showVersion := flag.Bool(
		"version", false,
		"Print version and exit",
	)
	verbose := flag.Bool(
		"verbose", false,
		"Enable debug logging",
	)

	flag.Parse()

	if *showVersion {
		fmt.Println(version) //nolint:forbidigo // CLI output

		return nil
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(
		os.Stderr, &slog.HandlerOptions{Level: level},
	))
	slog.SetDefault(logger)

	tplPath := *tpl
	if tplPath == "" && flag.NArg() > 0 {
		tplPath = flag.Arg(0)
	}

	inline, err := readPartials(partialFiles)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	en := templating.Engine{
		LeftDelim:      *leftDelim,
		RightDelim:     *rightDelim,
		PartialsPath:   *partialsPath,
		PartialsExt:    *partialsExt,
		Partials:       inline,
		StampInfoFiles: stampInfoFile,
		Logger:         logger,
	}

	if err := en.Expand(
		tplPath, *output, *data, variable, *executable,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// readPartials loads NAME=FILE partial definitions.
func readPartials(defs []string) (map[string]string, error) {
	const errCtx = "reading partials"

	out := make(map[string]string, len(defs))

	for _, def := range defs {
		name, pa, ok := strings.Cut(def, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf(
				"%s: partial must be NAME=FILE, got %s",
				errCtx, def,
			)
		}

		content, err := os.ReadFile(pa) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		out[name] = string(content)
	}

	return out, nil
}
