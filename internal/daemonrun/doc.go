// Package daemonrun assembles the framepipe runtime from configuration and
// drives the long-running worker process.
package daemonrun
