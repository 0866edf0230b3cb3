// Package renameio writes files atomically by renaming temporary
// files.
package renameio

import (
	"os"
	"path/filepath"
)

// WriteFile is like os.WriteFile, but the target is replaced
// atomically: data goes to a temporary file in the same directory
// which is then renamed over filename.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	err = f.Chmod(perm)
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, filename)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
