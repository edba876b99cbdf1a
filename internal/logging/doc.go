// Package logging provides structured logging for dossier runs.
//
// It wraps Go's log/slog JSON handler and adds context propagation for the
// identifiers that matter when reading a run's log after the fact: the run
// ID, the task (block) ID and the pipeline stage.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(runID)
//	runLogger.WithStage("researching").Info("frame applied", "kind", "progress")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"frame applied","run_id":"...","stage":"researching","kind":"progress"}
//
// # Log Rotation
//
// A client left attached to many long runs would grow its log without bound,
// so [NewLoggerWithRotation] writes through a [RotatingWriter]. Rotated files
// are named dossier.log.1 (newest) to dossier.log.N, optionally gzipped.
//
// # Testing
//
// Use [NopLogger] to discard all output.
package logging
