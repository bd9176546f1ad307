// Package services defines shared utilities consumed by the pipeline stages
// and the store adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, attempt numbers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the Classify
//     function that maps any error onto the retry taxonomy used by the
//     activity executor (retryable, abandoned, terminal input, terminal
//     budget).
//
// Use these helpers when wiring new stage logic so failure handling stays
// uniform across the pipeline.
package services
