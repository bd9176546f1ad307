// Package staging manages the per-job frame directories under the frames
// directory: listing them with their disk usage and pruning the ones whose
// job no longer exists.
package staging
