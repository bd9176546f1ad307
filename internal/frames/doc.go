// Package frames turns a video reference into an ordered list of frame
// artifacts and defines the Unit type the later stages operate on.
//
// Unit identifiers are derived from the job id and the zero-based frame index,
// so re-running extraction for the same job always yields the same ids. The
// FFmpeg source validates input with ffprobe first: unreadable or
// stream-less input fails with services.ErrInvalidInput (terminal), while
// ffmpeg failures during decoding are reported as transient.
package frames
