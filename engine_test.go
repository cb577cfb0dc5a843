// engine_test.go exercises the orchestrator end to end against a fake
// verifier: ordering plans, the found-announcement protocol, stop and
// checkpoint discipline, and the skip-filter integration.
package keysweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtarnawa/keysweep/bloom"
	kserrors "github.com/mtarnawa/keysweep/errors"
)

// recordSink captures the status stream.
type recordSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordSink) Line(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordSink) countPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func (s *recordSink) hasPrefix(prefix string) bool { return s.countPrefix(prefix) > 0 }

// recordVerifier counts every candidate handed to it and matches one
// configured password.
type recordVerifier struct {
	mu    sync.Mutex
	tried []string
	match string
}

func (v *recordVerifier) verify(password, archive string) bool {
	v.mu.Lock()
	v.tried = append(v.tried, password)
	v.mu.Unlock()
	return v.match != "" && password == v.match
}

func (v *recordVerifier) sequence() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.tried...)
}

func runSweep(t *testing.T, cfg Config, match string) (Result, *recordVerifier, *recordSink, error) {
	t.Helper()
	if cfg.Archive == "" {
		cfg.Archive = "test.7z"
	}
	v := &recordVerifier{match: match}
	sink := &recordSink{}
	eng, err := New(cfg, v.verify, sink)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := eng.Run(context.Background())
	return res, v, sink, err
}

func TestRun_AscendingOrder(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 2, Mode: ModeAscending, Threads: 1}
	res, v, sink, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Errorf("Outcome = %v, want not found", res.Outcome)
	}
	want := []string{"a", "b", "aa", "ab", "ba", "bb"}
	if got := v.sequence(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tried = %v, want %v", got, want)
	}
	if sink.hasPrefix("FOUND:") {
		t.Error("FOUND line emitted for a negative run")
	}
}

func TestRun_DescendingOrder(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 2, Mode: ModeDescending, Threads: 1}
	_, v, _, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"aa", "ab", "ba", "bb", "a", "b"}
	if got := v.sequence(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tried = %v, want %v", got, want)
	}
}

func TestRun_FoundSingleThread(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 2, Mode: ModeAscending, Threads: 1}
	res, v, sink, err := runSweep(t, cfg, "ba")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeFound || res.Password != "ba" {
		t.Fatalf("Result = %+v, want found %q", res, "ba")
	}
	want := []string{"a", "b", "aa", "ab", "ba"}
	if got := v.sequence(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tried = %v, want %v", got, want)
	}
	if n := sink.countPrefix("FOUND:"); n != 1 {
		t.Errorf("FOUND lines = %d, want exactly 1", n)
	}
	if !sink.hasPrefix("FOUND:ba") {
		t.Error("FOUND line does not carry the password")
	}
}

// TestRun_FoundParallel: with several workers racing, exactly one FOUND
// announcement wins and the reported password is one the verifier accepted.
func TestRun_FoundParallel(t *testing.T) {
	cfg := Config{Charset: "abc", MinLength: 1, MaxLength: 3, Mode: ModeAscending, Threads: 4}
	res, _, sink, err := runSweep(t, cfg, "cab")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeFound || res.Password != "cab" {
		t.Fatalf("Result = %+v, want found %q", res, "cab")
	}
	if n := sink.countPrefix("FOUND:"); n != 1 {
		t.Errorf("FOUND lines = %d, want exactly 1", n)
	}
}

func TestRun_TemplateSequence(t *testing.T) {
	cfg := Config{Charset: "01", MinLength: 3, MaxLength: 3, Mode: ModeAscending, Pattern: "1?0", Threads: 1}
	_, v, _, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"100", "110"}
	if got := v.sequence(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tried = %v, want %v", got, want)
	}
}

func TestRun_TemplateStarSequence(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 2, MaxLength: 4, Mode: ModeAscending, Pattern: "a*b", Threads: 1}
	_, v, _, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"ab", "aab", "abb", "aaab", "aabb", "abab", "abbb"}
	if got := v.sequence(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tried = %v, want %v", got, want)
	}
}

// TestRun_TemplateBoundsAdjust: the minimum is raised to the template's
// fixed length, and a star-free template collapses both bounds.
func TestRun_TemplateBoundsAdjust(t *testing.T) {
	t.Run("min raised to fixed", func(t *testing.T) {
		cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 3, Mode: ModeAscending, Pattern: "a?b", Threads: 1}
		_, v, sink, err := runSweep(t, cfg, "")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		want := []string{"aab", "abb"}
		if got := v.sequence(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("tried = %v, want %v", got, want)
		}
		if !sink.hasPrefix("INFO: Adjusted min length") {
			t.Error("missing min-length adjustment line")
		}
	})
	t.Run("fixed template collapses range", func(t *testing.T) {
		cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 5, Mode: ModeAscending, Pattern: "ba", Threads: 1}
		res, v, _, err := runSweep(t, cfg, "ba")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Outcome != OutcomeFound || res.Password != "ba" {
			t.Fatalf("Result = %+v, want found %q", res, "ba")
		}
		if got := v.sequence(); strings.Join(got, ",") != "ba" {
			t.Errorf("tried = %v, want only %q", got, "ba")
		}
	})
}

// TestRun_RandomPermutation: random order visits every plain candidate of
// the range exactly once.
func TestRun_RandomPermutation(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 3, Mode: ModeRandom, Threads: 1}
	res, v, _, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Errorf("Outcome = %v, want not found", res.Outcome)
	}
	got := v.sequence()
	if len(got) != 14 {
		t.Fatalf("tried %d candidates, want 14", len(got))
	}
	seen := map[string]int{}
	for _, s := range got {
		seen[s]++
	}
	for _, want := range []string{
		"a", "b",
		"aa", "ab", "ba", "bb",
		"aaa", "aab", "aba", "abb", "baa", "bab", "bba", "bbb",
	} {
		if seen[want] != 1 {
			t.Errorf("candidate %q visited %d times, want exactly once", want, seen[want])
		}
	}
}

// TestRun_RandomRespectsMinLength: the shuffled space starts at MinLength;
// shorter candidates are never produced.
func TestRun_RandomRespectsMinLength(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 2, MaxLength: 3, Mode: ModeRandom, Threads: 2}
	_, v, _, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := v.sequence()
	if len(got) != 12 {
		t.Fatalf("tried %d candidates, want 12", len(got))
	}
	for _, s := range got {
		if len(s) < 2 || len(s) > 3 {
			t.Errorf("candidate %q outside length bounds", s)
		}
	}
}

func TestRun_RandomTemplated(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 3, Mode: ModeRandom, Pattern: "a*", Threads: 1}
	_, v, _, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := v.sequence()
	seen := map[string]int{}
	for _, s := range got {
		seen[s]++
	}
	want := []string{"a", "aa", "ab", "aaa", "aab", "aba", "abb"}
	if len(got) != len(want) {
		t.Fatalf("tried %d candidates, want %d", len(got), len(want))
	}
	for _, s := range want {
		if seen[s] != 1 {
			t.Errorf("candidate %q visited %d times, want exactly once", s, seen[s])
		}
	}
}

// TestRun_RandomMultiStarFallsBack: two stars cannot be indexed; the run
// warns and falls back to ascending order, where every length fails counting
// and is skipped.
func TestRun_RandomMultiStarFallsBack(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 4, Mode: ModeRandom, Pattern: "*a*", Threads: 1}
	_, _, sink, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sink.hasPrefix("WARN: Random order is unsupported for multi-star templates") {
		t.Error("missing multi-star fallback warning")
	}
}

func TestRun_RandomOverflowRefused(t *testing.T) {
	charset := make([]byte, 256)
	for i := range charset {
		charset[i] = byte(i)
	}
	cfg := Config{Charset: string(charset), MinLength: 10, MaxLength: 10, Mode: ModeRandom, Threads: 1}
	_, _, sink, err := runSweep(t, cfg, "")
	if !errors.Is(err, kserrors.ErrCountOverflow) {
		t.Fatalf("Run() error = %v, want ErrCountOverflow", err)
	}
	if !sink.hasPrefix("FATAL ERROR:") {
		t.Error("missing FATAL ERROR line for refused random plan")
	}
}

// TestRun_StopFlag: a pre-existing <filter>.stop file stops the sweep before
// any verification; the result is Stopped, not NotFound, and the filter
// state is persisted.
func TestRun_StopFlag(t *testing.T) {
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "skip.bloom")
	if err := os.WriteFile(filterPath+".stop", nil, 0o644); err != nil {
		t.Fatalf("creating stop flag: %v", err)
	}
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 3, Mode: ModeAscending, FilterPath: filterPath, Threads: 2}
	res, v, sink, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeStopped {
		t.Errorf("Outcome = %v, want stopped", res.Outcome)
	}
	if len(v.sequence()) != 0 {
		t.Errorf("verifier called %d times after pre-set stop flag", len(v.sequence()))
	}
	if sink.hasPrefix("FOUND:") {
		t.Error("FOUND line emitted for a stopped run")
	}
	if _, err := os.Stat(filterPath); err != nil {
		t.Errorf("filter state not persisted after stop: %v", err)
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 3, Mode: ModeAscending, Archive: "test.7z", Threads: 1}
	v := &recordVerifier{}
	sink := &recordSink{}
	eng, err := New(cfg, v.verify, sink)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeStopped {
		t.Errorf("Outcome = %v, want stopped", res.Outcome)
	}
}

// TestRun_CheckpointBetweenStages: with a tiny interval, the filter is
// persisted at stage joins even though the run ends without a match.
func TestRun_CheckpointBetweenStages(t *testing.T) {
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "skip.bloom")
	cfg := Config{
		Charset: "ab", MinLength: 1, MaxLength: 3, Mode: ModeAscending,
		FilterPath: filterPath, CheckpointInterval: time.Nanosecond, Threads: 1,
	}
	res, _, sink, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Errorf("Outcome = %v, want not found", res.Outcome)
	}
	if !sink.hasPrefix("INFO: Checkpoint interval reached") {
		t.Error("no checkpoint attempted despite elapsed interval")
	}
	if _, err := os.Stat(filterPath); err != nil {
		t.Errorf("filter state missing after checkpoints: %v", err)
	}
}

// TestRun_FinalSaveSkippedOnExhaustion: no periodic saves, no match, no
// stop: the filter file is never written.
func TestRun_FinalSaveSkippedOnExhaustion(t *testing.T) {
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "skip.bloom")
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 2, Mode: ModeAscending, FilterPath: filterPath, Threads: 1}
	_, _, sink, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sink.hasPrefix("INFO: Final skip filter save skipped") {
		t.Error("missing final-save skip explanation")
	}
	if _, err := os.Stat(filterPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("filter file unexpectedly written: err = %v", err)
	}
}

// TestRun_FinalSaveOnFound: a successful run persists the filter, and the
// persisted state contains the verified-wrong candidate.
func TestRun_FinalSaveOnFound(t *testing.T) {
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "skip.bloom")
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 1, Mode: ModeAscending, FilterPath: filterPath, Threads: 1}
	res, _, _, err := runSweep(t, cfg, "b")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeFound {
		t.Fatalf("Outcome = %v, want found", res.Outcome)
	}
	loaded, err := bloom.Load(filterPath)
	if err != nil {
		t.Fatalf("loading persisted filter: %v", err)
	}
	if !loaded.Contains("a") {
		t.Error("persisted filter missing the verified-wrong candidate")
	}
}

// TestRun_FilterSkipsTried: candidates already in a loaded filter are never
// re-verified on resume.
func TestRun_FilterSkipsTried(t *testing.T) {
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "skip.bloom")
	prior := bloom.New(2, 0.01)
	prior.Insert("a")
	if err := prior.WriteFile(filterPath); err != nil {
		t.Fatalf("seeding filter: %v", err)
	}
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 1, Mode: ModeAscending, FilterPath: filterPath, Threads: 1}
	res, v, sink, err := runSweep(t, cfg, "b")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sink.hasPrefix("INFO: Loaded existing skip filter") {
		t.Error("existing filter was not loaded")
	}
	if res.Outcome != OutcomeFound || res.Password != "b" {
		t.Fatalf("Result = %+v, want found %q", res, "b")
	}
	if got := v.sequence(); strings.Join(got, ",") != "b" {
		t.Errorf("tried = %v, want only %q (filter should skip %q)", got, "b", "a")
	}
}

// TestRun_CorruptFilterFile: a filter file with a zeroed magic is rejected
// and the engine proceeds with a fresh filter.
func TestRun_CorruptFilterFile(t *testing.T) {
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "skip.bloom")
	if err := os.WriteFile(filterPath, make([]byte, 64), 0o644); err != nil {
		t.Fatalf("writing corrupt filter: %v", err)
	}
	cfg := Config{Charset: "ab", MinLength: 1, MaxLength: 2, Mode: ModeAscending, FilterPath: filterPath, Threads: 1}
	res, v, sink, err := runSweep(t, cfg, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sink.hasPrefix("WARN: Existing skip filter file was invalid") {
		t.Error("missing invalid-filter warning")
	}
	if res.Outcome != OutcomeNotFound {
		t.Errorf("Outcome = %v, want not found", res.Outcome)
	}
	if len(v.sequence()) != 6 {
		t.Errorf("tried %d candidates, want the full space of 6", len(v.sequence()))
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	valid := Config{Charset: "ab", MinLength: 1, MaxLength: 2, Archive: "x.7z"}
	tests := []struct {
		name    string
		mutate  func(Config) Config
		wantErr error
	}{
		{"empty charset", func(c Config) Config { c.Charset = ""; return c }, kserrors.ErrEmptyCharset},
		{"zero min", func(c Config) Config { c.MinLength = 0; return c }, kserrors.ErrBadLengths},
		{"max below min", func(c Config) Config { c.MaxLength = 0; return c }, kserrors.ErrBadLengths},
		{"no archive", func(c Config) Config { c.Archive = ""; return c }, kserrors.ErrNoArchive},
		{"bad mode", func(c Config) Config { c.Mode = Mode(9); return c }, kserrors.ErrUnknownMode},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.mutate(valid), func(string, string) bool { return false }, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
	t.Run("nil verify", func(t *testing.T) {
		if _, err := New(valid, nil, nil); err == nil {
			t.Error("New() accepted a nil verify function")
		}
	})
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"ascending", ModeAscending, true},
		{"ASC", ModeAscending, true},
		{"Descending", ModeDescending, true},
		{"desc", ModeDescending, true},
		{"random", ModeRandom, true},
		{"lcg", 0, false},
		{"", 0, false},
	} {
		got, err := ParseMode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseMode(%q) succeeded, want error", tc.in)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	for _, tc := range []struct {
		o    Outcome
		want string
	}{
		{OutcomeFound, "found"}, {OutcomeNotFound, "not found"}, {OutcomeStopped, "stopped"},
	} {
		if tc.o.String() != tc.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tc.o, tc.o.String(), tc.want)
		}
	}
}

func ExampleNewWriterSink() {
	sink := NewWriterSink(os.Stdout)
	sink.Line("INFO: example line")
	// Output: INFO: example line
}
