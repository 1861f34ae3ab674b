//go:build !linux

package fsstat

import "os"

// statFile falls back to what os.Stat exposes portably
func statFile(path string) (*FileStat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, nil
	}
	return &FileStat{
		Path:  path,
		Size:  fi.Size(),
		Links: 1,
		Atime: fi.ModTime(),
		Mtime: fi.ModTime(),
		Ctime: fi.ModTime(),
	}, nil
}
