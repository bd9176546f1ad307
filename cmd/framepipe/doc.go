// Package main hosts the framepipe CLI entrypoint and command graph.
//
// Commands submit videos, drive single jobs in-process, run the long-lived
// worker, and inspect or maintain the job store. Configuration resolution and
// runtime wiring live in commandContext so subcommands only deal with output.
package main
