// Package keysweep implements a parallel, resumable password search engine
// for encrypted archives. Candidates are enumerated from a declared alphabet
// and length range, optionally constrained by a wildcard template, and each
// surviving candidate is verified by spawning an external archive tester.
//
// # Basic Usage
//
//	path, err := verifier.FindNearExecutable()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := keysweep.New(keysweep.Config{
//	    Charset:   "abcdefghijklmnopqrstuvwxyz",
//	    MinLength: 1,
//	    MaxLength: 6,
//	    Archive:   "secret.7z",
//	    Mode:      keysweep.ModeAscending,
//	}, verifier.New(path).Verify, keysweep.NewWriterSink(os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := eng.Run(ctx)
//
// # Package Structure
//
//   - Public API: engine.go (New, Run), config.go (Config, Mode), result.go
//   - Orchestration: plan.go (ordered stages), random.go (shuffled plans),
//     worker.go (the shared sweep loop), checkpoint.go (filter persistence)
//   - Status stream: status.go (StatusSink, prefix helpers)
//   - Skip filter: bloom/ (FNV-1a double hashing, on-disk format v1)
//   - Enumeration: internal/keyspace/ (index<->candidate bijections)
//   - External process: verifier/ (archive tester adapter and discovery)
package keysweep
