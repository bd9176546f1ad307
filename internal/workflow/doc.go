// Package workflow drives jobs through the extract, process, and store
// activities.
//
// The Orchestrator runs one job from its current status to completed or
// failed. Each stage executes through activity.Run with the retry policy and
// timeouts from config; its output is persisted on the job row before the
// status advances, so a job picked up by another worker resumes at the stage
// it was in. Attempt numbers, retries, and heartbeats are written to the job's
// progress columns and never change its status.
//
// The Manager runs worker_count job loops. Each loop leases a job from the
// dispatch source, refreshes the lease while the orchestrator runs, and
// releases it afterwards. A reclaimer clears leases whose heartbeat went stale
// so crashed workers do not strand jobs.
package workflow
