// Package file writes files in place of existing ones
package file

import (
	"io/fs"
	"os"
	"path/filepath"
)

// WriteAtomic replaces filePath with data. The data is written to a temporary
// file next to it which is renamed over filePath, readers never see a partial file.
func WriteAtomic(filePath string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Only removes something if the rename did not happen
	defer func() {
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}

	return os.Rename(tmp, filePath)
}
