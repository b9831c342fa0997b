package xmlvalidator

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// FilePath is a file argument as typed and its resolved path.
type FilePath struct {
	Name string
	Path string
}

// Resolve prefers the working-directory-joined path when a file of that
// name exists there, or when the bare name does not exist at all. Otherwise
// the name is used as given.
func Resolve(fs afero.Fs, cwd, name string) FilePath {
	joined := filepath.Join(cwd, name)
	if fileExists(fs, joined) || !fileExists(fs, name) {
		return FilePath{Name: name, Path: joined}
	}
	return FilePath{Name: name, Path: name}
}

// Exists reports whether the resolved path names a regular file.
func (p FilePath) Exists(fs afero.Fs) bool {
	return fileExists(fs, p.Path)
}

func fileExists(fs afero.Fs, path string) bool {
	if ok, err := afero.Exists(fs, path); err != nil || !ok {
		return false
	}
	dir, err := afero.IsDir(fs, path)
	return err == nil && !dir
}
