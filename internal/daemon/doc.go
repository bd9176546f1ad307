// Package daemon hosts the long-running framepipe worker.
//
// It ties configuration, the job store, the dispatch source, and the workflow
// manager into a single lifecycle with flock-based locking so only one worker
// process runs per data directory. Submissions go through the daemon so the
// dispatch source is told about new jobs.
package daemon
