package keysweep

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// stopCheckInterval is how many work items a worker processes between
// stat probes of the stop-flag file.
const stopCheckInterval = 1000

// candidateFunc materializes the candidate for work item i. A false return
// means the index could not be mapped; the worker logs and moves on.
//
// The three worker kinds differ only in this function: sequential workers
// expand a local index directly, templated workers index into one length
// block, and shuffled workers dereference a permutation first. There is no
// worker hierarchy; the loop below is the whole worker.
type candidateFunc func(i uint64) (string, bool)

// sweep is the shared worker loop over the half-open range [start, end).
// Every iteration re-checks the found and stop flags; every
// stopCheckInterval'th iteration additionally probes the stop-flag file and
// the context. Verification misses are inserted into the skip filter;
// hits are announced and terminate the worker.
func (e *Engine) sweep(ctx context.Context, start, end uint64, gen candidateFunc) {
	for i := start; i < end; i++ {
		if e.found.Load() || e.stopped.Load() {
			return
		}
		if i%stopCheckInterval == 0 {
			select {
			case <-ctx.Done():
				e.requestStop("Cancellation requested.")
				return
			default:
			}
			if e.stopPath != "" && stopFlagExists(e.stopPath) {
				e.requestStop("Stop flag file detected by worker.")
				return
			}
		}
		pwd, ok := gen(i)
		if !ok {
			e.warnf("Candidate materialization failed for work item %d.", i)
			continue
		}
		if e.filterContains(pwd) {
			continue
		}
		if e.verify(pwd, e.cfg.Archive) {
			e.announceFound(pwd)
			return
		}
		e.filterInsert(pwd)
	}
}

// runStage partitions [0, total) into contiguous chunks, one per worker, and
// joins them all before returning. newGen is called once per worker so each
// goroutine gets its own closure (and scratch buffer). The join is the stage
// boundary the ordering guarantees rely on.
func (e *Engine) runStage(ctx context.Context, total uint64, newGen func() candidateFunc) {
	if total == 0 {
		return
	}
	threads := uint64(e.threads)
	perWorker := (total + threads - 1) / threads
	if perWorker == 0 {
		perWorker = 1
	}
	var g errgroup.Group
	for t := uint64(0); t < threads; t++ {
		if e.shouldStop(ctx) {
			break
		}
		start := t * perWorker
		if start >= total {
			break
		}
		end := min(start+perWorker, total)
		gen := newGen()
		g.Go(func() error {
			e.sweep(ctx, start, end, gen)
			return nil
		})
	}
	// Workers report through the run state, not through errors.
	_ = g.Wait()
}
