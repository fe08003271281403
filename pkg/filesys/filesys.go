// Package filesys holds the little filesystem work the map needs outside
// its mapped region: preparing the data directory a builder lays its data
// file and config preview into.
package filesys

import (
	"errors"
	"os"
)

// ErrNotDirectory is returned when a data-directory path already exists
// but is a regular file.
var ErrNotDirectory = errors.New("path is not a directory")

// CreateDir ensures a directory exists at dirPath with the given
// permissions, creating parents as needed. An existing directory is
// accepted as-is; an existing regular file at the path is rejected, since
// silently mapping a data file inside what the caller thought was a
// directory would be worse than failing here.
func CreateDir(dirPath string, permission os.FileMode) error {
	stat, err := os.Stat(dirPath)
	if err == nil {
		if !stat.IsDir() {
			return ErrNotDirectory
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dirPath, permission)
}
