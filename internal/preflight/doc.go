// Package preflight provides readiness checks for the binaries, directories,
// and backing services framepipe depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll when it starts. A failing check is
//     logged and the workers still start, since stores and dispatch fall back
//     or retry on their own.
//   - The CLI "framepipe status" command calls the same functions to display
//     service health.
//
// Checks for optional backends only run when that backend is configured.
package preflight
