// Package assets locates and verifies the model files bundled with the runtime:
// one shared architecture descriptor and one weight blob per style.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Asset errors
var (
	ErrAssetNotFound    = errors.New("assets: file not found")
	ErrInvalidManifest  = errors.New("assets: invalid manifest")
	ErrChecksumMismatch = errors.New("assets: checksum mismatch")
)

// Source reads named asset files. Names are slash-separated and relative.
type Source interface {
	ReadFile(name string) ([]byte, error)
	// String describes where the assets come from, for logs.
	String() string
}

type fsSource struct {
	fsys fs.FS
	desc string
}

// FS wraps an fs.FS, typically an embed.FS with the models compiled in.
func FS(fsys fs.FS) Source {
	return &fsSource{fsys: fsys, desc: "embedded"}
}

// Dir reads assets from a directory on disk.
func Dir(path string) Source {
	return &fsSource{fsys: os.DirFS(path), desc: path}
}

func (s *fsSource) ReadFile(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrAssetNotFound, name, s.desc)
		}
		return nil, fmt.Errorf("assets: read %s in %s: %w", name, s.desc, err)
	}
	return data, nil
}

func (s *fsSource) String() string {
	return s.desc
}
