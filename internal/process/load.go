package process

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/roach88/txflow/internal/compiler"
)

//go:embed defs/*.cue
var builtinFS embed.FS

// Builtin compiles the embedded default-booking, default-purchase,
// default-inquiry and default-negotiation definitions into a new registry.
func Builtin() (*Registry, error) {
	sub, err := fs.Sub(builtinFS, "defs")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadDir builds a registry from every .cue file in dir.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("load processes: %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS builds a registry from every top-level .cue file in fsys.
// Files are compiled in lexical order.
func LoadFS(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "*.cue")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load processes: no .cue files found")
	}

	var defs []*Definition
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}

		specs, err := compiler.CompileFile(path.Base(file), data)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", file, err)
		}

		for _, spec := range specs {
			d, err := NewDefinition(spec)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			defs = append(defs, d)
		}
	}

	return NewRegistry(defs...)
}
