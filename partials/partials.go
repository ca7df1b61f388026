package partials

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// DefaultExt is the extension appended to partial names when
// reading them from a directory.
const DefaultExt = "mustache"

// Loader implements the renderer's partial resolver. It is only
// read during rendering and may be shared between renders.
type Loader struct {
	// Partials takes precedence over FS.
	Partials map[string]string

	// FS holds partial files. Nil disables file lookups.
	FS fs.FS

	// Ext is appended as "."+Ext to the name. Empty means the
	// name is used as the file name.
	Ext string

	Logger *slog.Logger
}

// New returns a Loader reading files from dir with the given
// extension after consulting partials.
func New(
	partials map[string]string,
	dir string,
	ext string,
) *Loader {
	if dir == "" {
		dir = "."
	}

	return &Loader{
		Partials: partials,
		FS:       os.DirFS(dir),
		Ext:      ext,
	}
}

// Partial returns the text of the named partial or "".
func (ld *Loader) Partial(name string) string {
	if text, ok := ld.Partials[name]; ok {
		return text
	}

	if ld.FS == nil {
		return ""
	}

	pa := name
	if ld.Ext != "" {
		pa += "." + ld.Ext
	}

	content, err := fs.ReadFile(ld.FS, pa)
	if err != nil {
		ld.logger().Debug(
			"partial not loaded",
			"name", name,
			"path", pa,
			"error", err,
		)

		return ""
	}

	return string(content)
}

func (ld *Loader) logger() *slog.Logger {
	if ld.Logger != nil {
		return ld.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
