// Package verifier adapts an external archive-tester binary (7-Zip's "t"
// command) into a concurrency-safe candidate check.
package verifier

import (
	"os/exec"
)

// Verifier invokes an external archive tester, one process per call.
//
// Every call spawns its own process and shares no state, so a single
// Verifier is safe for concurrent use from many worker goroutines.
type Verifier struct {
	path string
}

// New returns a Verifier that runs the tester binary at path. Use Find to
// locate the binary first.
func New(path string) *Verifier {
	return &Verifier{path: path}
}

// Path returns the tester binary path.
func (v *Verifier) Path() string { return v.path }

// Verify tests password against the archive:
//
//	<tester> t <archive> -p<password> -y
//
// with stdout and stderr discarded. Only exit status 0 counts as success;
// any non-zero exit, spawn failure, or signal is a negative answer. There
// are no retries.
func (v *Verifier) Verify(password, archive string) bool {
	cmd := exec.Command(v.path, "t", archive, "-p"+password, "-y")
	// Stdout and Stderr left nil: os/exec wires them to the null device.
	return cmd.Run() == nil
}
