package keysweep

import (
	"fmt"
	"io"
	"sync"
)

// StatusSink receives the engine's append-only status stream: one UTF-8 line
// per call, without the trailing newline. Lines carry one of the prefixes
// "INFO: ", "WARN: ", "ERROR: ", "FATAL ERROR: ", or the terminal
// "FOUND:<password>" marker.
//
// Implementations must tolerate concurrent calls from worker goroutines.
type StatusSink interface {
	Line(line string)
}

// WriterSink is a StatusSink writing newline-terminated lines to w,
// serialized by a mutex so concurrent workers cannot interleave bytes.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w as a StatusSink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Line(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

// discardSink drops the stream; used when the caller passes a nil sink.
type discardSink struct{}

func (discardSink) Line(string) {}

func (e *Engine) infof(format string, args ...any) {
	e.sink.Line("INFO: " + fmt.Sprintf(format, args...))
}

func (e *Engine) warnf(format string, args ...any) {
	e.sink.Line("WARN: " + fmt.Sprintf(format, args...))
}

func (e *Engine) errorf(format string, args ...any) {
	e.sink.Line("ERROR: " + fmt.Sprintf(format, args...))
}

func (e *Engine) fatalf(format string, args ...any) {
	e.sink.Line("FATAL ERROR: " + fmt.Sprintf(format, args...))
}
