package keysweep

import "time"

// maybeCheckpoint persists the skip filter between stages when the
// configured interval has elapsed. Skipped entirely once a stop has been
// requested: the final-save path owns persistence from that point.
func (e *Engine) maybeCheckpoint() {
	if e.filterPath == "" || e.cfg.CheckpointInterval <= 0 || e.stopped.Load() {
		return
	}
	if time.Since(e.lastCheckpoint) < e.cfg.CheckpointInterval {
		return
	}
	e.infof("Checkpoint interval reached. Saving skip filter state...")
	e.persistFilter()
	// Advance regardless of save success so a persistently failing disk
	// does not turn every stage boundary into a save attempt.
	e.lastCheckpoint = time.Now()
}

// persistFilter serializes the filter under the filter mutex. Save failures
// are logged and swallowed; losing a checkpoint never fails the run.
func (e *Engine) persistFilter() {
	e.filterMu.Lock()
	err := e.filter.WriteFile(e.filterPath)
	e.filterMu.Unlock()
	if err != nil {
		e.errorf("Failed to save skip filter state: %v", err)
		return
	}
	e.infof("Skip filter state saved to: %s", e.filterPath)
}

// finalSave runs at normal termination. It persists only when the filter is
// valid and there is a reason to: the password was found or a stop was
// requested mid-space. An exhaustive negative run has already inserted every
// candidate it ever will, so re-persisting a saturated filter is skipped.
func (e *Engine) finalSave() {
	if e.filterPath == "" {
		return
	}
	if !e.filter.Valid() {
		e.infof("Final skip filter save skipped (filter became invalid during the run).")
		return
	}
	if !e.found.Load() && !e.stopped.Load() {
		e.infof("Final skip filter save skipped (run finished normally without a match or stop).")
		return
	}
	e.infof("Performing final save of skip filter state...")
	e.persistFilter()
}

// saveAfterError makes a best-effort persist after a fatal planning error.
func (e *Engine) saveAfterError() {
	if e.filterPath == "" || !e.filter.Valid() {
		return
	}
	e.infof("Attempting final save of skip filter state after error...")
	e.persistFilter()
}
