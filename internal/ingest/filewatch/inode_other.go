//go:build !linux && !darwin

package filewatch

import "os"

// inodeOf has no portable equivalent on platforms without a Unix inode;
// rotation there is still caught by the "current size < last offset"
// half of the §4.4 rotation check.
func inodeOf(fi os.FileInfo) uint64 {
	return 0
}
