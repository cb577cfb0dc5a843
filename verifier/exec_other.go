//go:build !unix

package verifier

import "os"

// testerName is the archive tester binary name on non-unix platforms.
const testerName = "7z.exe"

// isExecutable reports whether path is a regular file. Non-unix platforms
// have no access(2); the OS rejects non-executables at spawn time instead.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
