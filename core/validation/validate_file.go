package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExistsError indicates a missing or unusable path.
type FileExistsError struct {
	Path    string
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// CheckFileExists returns a *FileExistsError unless path is a regular file.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileExistsError{Path: path, Message: "file path cannot be empty"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileExistsError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return &FileExistsError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	}
	if info.IsDir() {
		return &FileExistsError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}
	return nil
}

// CheckDirExists returns a *FileExistsError unless path is a directory.
func CheckDirExists(path string) error {
	if path == "" {
		return &FileExistsError{Path: path, Message: "directory path cannot be empty"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileExistsError{Path: path, Message: fmt.Sprintf("directory not found: %s", path)}
		}
		return &FileExistsError{Path: path, Message: fmt.Sprintf("error checking directory %s: %v", path, err)}
	}
	if !info.IsDir() {
		return &FileExistsError{Path: path, Message: fmt.Sprintf("path is a file, not a directory: %s", path)}
	}
	return nil
}

// CheckWritable verifies that a file can be created next to path, creating
// missing parent directories the way the history database does.
func CheckWritable(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".styletransfer-write-check-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
