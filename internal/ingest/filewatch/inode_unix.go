//go:build linux || darwin

package filewatch

import (
	"os"
	"syscall"
)

// inodeOf extracts the platform inode number used to detect log rotation
// (§4.4: "rotation is detected as inode change"). Mirrors gravwell's own
// per-platform split between liner_linux.go and liner_windows.go.
func inodeOf(fi os.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
