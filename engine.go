package keysweep

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtarnawa/keysweep/bloom"
	"github.com/mtarnawa/keysweep/internal/keyspace"
)

// defaultFalsePositiveRate sizes freshly created skip filters.
const defaultFalsePositiveRate = 0.01

// VerifyFunc tests one candidate against the archive. It must be safe for
// concurrent calls; the engine invokes it from every worker goroutine.
// A false return is final: there are no retries.
type VerifyFunc func(password, archive string) bool

// Engine owns one sweep: the ordering plan, the worker pool, the shared
// skip filter, and the found/stop run state. An Engine runs once; create a
// new one for a new sweep.
type Engine struct {
	cfg     Config
	verify  VerifyFunc
	sink    StatusSink
	threads int

	// Skip filter. filterPath empty means the feature is disabled for this
	// run (not requested, or disabled during bootstrap). All inserts and
	// serializations go through filterMu; Contains reads without the lock.
	filterMu   sync.Mutex
	filter     *bloom.Filter
	filterPath string
	stopPath   string

	found    atomic.Bool
	stopped  atomic.Bool
	foundMu  sync.Mutex
	foundPwd string

	lastCheckpoint time.Time
}

// New validates cfg and prepares an engine. verify must not be nil. A nil
// sink discards the status stream.
func New(cfg Config, verify VerifyFunc, sink StatusSink) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if verify == nil {
		return nil, errors.New("keysweep: verify function must not be nil")
	}
	if sink == nil {
		sink = discardSink{}
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if threads < 1 {
		threads = 4
	}
	return &Engine{
		cfg:     cfg,
		verify:  verify,
		sink:    sink,
		threads: threads,
	}, nil
}

// Run executes the sweep until a match, exhaustion, a cooperative stop, or a
// fatal planning error. The returned error is non-nil only for the fatal
// class; Stopped and NotFound are ordinary results.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	e.lastCheckpoint = start
	e.infof("Starting sweep in %s mode.", e.cfg.Mode)
	e.infof("Using %d worker threads.", e.threads)

	e.prepareFilter()

	var sweepErr error
	if e.cfg.Pattern != "" {
		sweepErr = e.sweepTemplated(ctx)
	} else {
		sweepErr = e.sweepPlain(ctx)
	}
	if sweepErr != nil {
		e.fatalf("%v", sweepErr)
		e.saveAfterError()
		return Result{}, sweepErr
	}

	elapsed := time.Since(start)
	e.infof("Sweep finished in %.3f seconds.", elapsed.Seconds())

	e.finalSave()

	if e.found.Load() {
		e.foundMu.Lock()
		pwd := e.foundPwd
		e.foundMu.Unlock()
		e.sink.Line("FOUND:" + pwd)
		e.infof("Password found!")
		return Result{Outcome: OutcomeFound, Password: pwd, Elapsed: elapsed}, nil
	}
	if e.stopped.Load() {
		e.infof("Sweep stopped by request.")
		return Result{Outcome: OutcomeStopped, Elapsed: elapsed}, nil
	}
	e.infof("Exhausted search space without finding the password.")
	return Result{Outcome: OutcomeNotFound, Elapsed: elapsed}, nil
}

// sweepPlain dispatches the un-templated modes.
func (e *Engine) sweepPlain(ctx context.Context) error {
	if e.cfg.Mode == ModeRandom {
		return e.sweepPlainRandom(ctx)
	}
	e.sweepPlainOrdered(ctx)
	return nil
}

// sweepTemplated parses the template, applies the length-bound adjustments
// it implies, and dispatches. Random ordering over multi-star templates is
// not indexable and falls back to ascending.
func (e *Engine) sweepTemplated(ctx context.Context) error {
	tpl := keyspace.ParseTemplate(e.cfg.Pattern)
	if tpl.Empty() {
		// Nothing but escapes of nothing: degenerate to plain enumeration.
		return e.sweepPlain(ctx)
	}
	e.infof("Template mode enabled.")

	minLen, maxLen := e.cfg.MinLength, e.cfg.MaxLength
	fixed := tpl.Fixed()
	if minLen < fixed {
		e.infof("Adjusted min length from %d to template minimum %d.", minLen, fixed)
		minLen = fixed
	}
	if tpl.Stars() == 0 && maxLen != fixed {
		e.infof("Adjusted max length to %d (template has fixed length).", fixed)
		maxLen = fixed
		minLen = fixed
	}
	if maxLen < minLen {
		e.infof("Corrected max length to %d (max < min).", minLen)
		maxLen = minLen
	}

	mode := e.cfg.Mode
	if mode == ModeRandom && tpl.Stars() >= 2 {
		e.warnf("Random order is unsupported for multi-star templates. Falling back to ascending.")
		mode = ModeAscending
	}
	if mode == ModeRandom {
		fellBack, err := e.sweepTemplatedRandom(ctx, tpl, minLen, maxLen)
		if err != nil {
			return err
		}
		if !fellBack {
			return nil
		}
		mode = ModeAscending
	}
	e.sweepTemplatedOrdered(ctx, tpl, minLen, maxLen, mode)
	return nil
}

// shouldStop consolidates the orchestrator-side stop checks run between
// stages and before each spawn: context cancellation, the stop-flag file,
// and a previously latched stop.
func (e *Engine) shouldStop(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		e.requestStop("Cancellation requested.")
	default:
	}
	if e.stopPath != "" && stopFlagExists(e.stopPath) {
		e.requestStop("Stop flag file detected.")
	}
	return e.stopped.Load()
}

// requestStop latches the cooperative stop flag, logging only on the first
// transition to avoid a line per worker.
func (e *Engine) requestStop(reason string) {
	if e.stopped.CompareAndSwap(false, true) {
		e.infof("%s", reason)
	}
}

// stopFlagExists reports whether the external stop-flag file is present.
// Content is irrelevant.
func stopFlagExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// announceFound records the verified password. Exactly one worker wins the
// compare-and-swap; the rest observe found at their next loop header.
func (e *Engine) announceFound(pwd string) {
	if e.found.CompareAndSwap(false, true) {
		e.foundMu.Lock()
		e.foundPwd = pwd
		e.foundMu.Unlock()
	}
}

// filterContains consults the skip filter without a lock. Set bits are
// monotone, so a racy read can only miss a bit and cause one spurious
// verification.
func (e *Engine) filterContains(pwd string) bool {
	return e.filterPath != "" && e.filter.Contains(pwd)
}

// filterInsert records a verified-wrong candidate.
func (e *Engine) filterInsert(pwd string) {
	if e.filterPath == "" {
		return
	}
	e.filterMu.Lock()
	e.filter.Insert(pwd)
	e.filterMu.Unlock()
}

// prepareFilter loads or creates the skip filter when the feature is
// requested. Estimation overflow, a zero estimate, or a bit requirement
// above the cap disables the feature for this run; the sweep proceeds
// without it.
func (e *Engine) prepareFilter() {
	e.filterPath = e.cfg.FilterPath
	if e.filterPath == "" {
		e.infof("Skip filter not requested.")
		return
	}
	e.infof("Skip filter enabled. File: %s", e.filterPath)
	if e.cfg.CheckpointInterval > 0 {
		e.infof("Checkpoint interval: %s.", e.cfg.CheckpointInterval)
	} else {
		e.infof("Periodic checkpointing disabled (final save on exit only).")
	}

	if f, err := bloom.Load(e.filterPath); err == nil {
		e.filter = f
		e.stopPath = e.filterPath + ".stop"
		e.infof("Loaded existing skip filter. Bits: %d, hashes: %d.", f.Bits(), f.Hashes())
		return
	} else if !errors.Is(err, os.ErrNotExist) {
		e.warnf("Existing skip filter file was invalid or unreadable (%v). Creating a new one.", err)
	} else {
		e.infof("No existing skip filter found. Creating a new one.")
	}

	estimate, err := keyspace.TotalCount(uint64(len(e.cfg.Charset)), e.cfg.MinLength, e.cfg.MaxLength)
	if err != nil {
		e.errorf("Cannot estimate candidate count for the target range (overflow). Disabling skip filter for this run.")
		e.filterPath = ""
		return
	}
	if estimate == 0 {
		e.warnf("Target range holds no candidates. Disabling skip filter for this run.")
		e.filterPath = ""
		return
	}
	mBits, _ := bloom.Sizing(estimate, defaultFalsePositiveRate)
	if mBits > bloom.MaxBits {
		e.errorf("Skip filter would need %d bits (%d MiB); cap is %d bits (%d MiB). Disabling skip filter for this run.",
			mBits, mBits/8/(1<<20), bloom.MaxBits, bloom.MaxBits/8/(1<<20))
		e.filterPath = ""
		return
	}
	e.infof("Initializing skip filter for ~%d candidates at target rate %g (~%d MiB).",
		estimate, defaultFalsePositiveRate, mBits/8/(1<<20))
	e.filter = bloom.New(estimate, defaultFalsePositiveRate)
	e.stopPath = e.filterPath + ".stop"
	e.infof("New skip filter created. Bits: %d, hashes: %d.", e.filter.Bits(), e.filter.Hashes())
}
