// Package activity runs one unit of pipeline work (an "activity") under a
// retry policy with per-attempt timeouts, an overall deadline, and heartbeat
// supervision.
//
// Each attempt receives its own cancellable context and an *Attempt handle it
// uses to heartbeat. The executor polls the HeartbeatMonitor; an attempt that
// stops heartbeating for longer than the configured timeout is cancelled,
// given a grace period to return, and counted as a retryable failure. Exactly
// one outcome is surfaced per Run call: the value, a *TerminalError, or the
// parent context's error on shutdown.
package activity
