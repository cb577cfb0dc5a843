package verifier

import (
	"os"
	"os/exec"
	"path/filepath"

	kserrors "github.com/mtarnawa/keysweep/errors"
)

// Find locates the archive tester binary. Probe order:
//
//  1. <baseDir>/bin/<tester>
//  2. <baseDir>/../bin/<tester>
//  3. the system PATH
//
// baseDir is normally the directory containing the running executable
// (see FindNearExecutable). Returns ErrVerifierNotFound when no probe
// yields an executable regular file.
func Find(baseDir string) (string, error) {
	if baseDir != "" {
		candidates := []string{
			filepath.Join(baseDir, "bin", testerName),
			filepath.Join(baseDir, "..", "bin", testerName),
		}
		for _, path := range candidates {
			if isExecutable(path) {
				return path, nil
			}
		}
	}
	if path, err := exec.LookPath(testerName); err == nil {
		return path, nil
	}
	return "", kserrors.ErrVerifierNotFound
}

// FindNearExecutable is Find anchored at the running binary's directory.
func FindNearExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return Find("")
	}
	return Find(filepath.Dir(exe))
}
