package frames

import (
	"context"

	"framepipe/internal/activity"
)

// Options controls frame sampling.
type Options struct {
	// Step keeps every Step-th decoded frame.
	Step int
	// MaxUnits caps the number of kept frames.
	MaxUnits int
	// OutputDir receives the extracted images. Existing frames are replaced.
	OutputDir string
}

// Source decodes a video into frame files and returns their paths in order.
// Implementations heartbeat on hb while decoding; hb may be nil.
type Source interface {
	Extract(ctx context.Context, hb activity.Heartbeater, inputRef string, opts Options) ([]string, error)
}
