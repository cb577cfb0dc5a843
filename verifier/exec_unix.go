//go:build unix

package verifier

import (
	"os"

	"golang.org/x/sys/unix"
)

// testerName is the archive tester binary name on unix platforms.
const testerName = "7z"

// isExecutable reports whether path is a regular file this process may
// execute, via the access(2) X_OK probe.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
