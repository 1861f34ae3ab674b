//go:build linux

package fsstat

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// statFile returns nil for anything that is not a regular file
func statFile(path string) (*FileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return nil, nil
	}
	return &FileStat{
		Path:   path,
		Size:   st.Size,
		Links:  int(st.Nlink),
		UID:    int(st.Uid),
		GID:    int(st.Gid),
		Atime:  time.Unix(st.Atim.Unix()),
		Mtime:  time.Unix(st.Mtim.Unix()),
		Ctime:  time.Unix(st.Ctim.Unix()),
		Device: uint64(st.Dev),
	}, nil
}
