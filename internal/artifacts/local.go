package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"framepipe/internal/services"
)

// Local keeps frames where the extractor wrote them.
type Local struct{}

// NewLocal returns the local artifact store.
func NewLocal() *Local {
	return &Local{}
}

// Put verifies the frame exists and returns its absolute path as the ref.
func (l *Local) Put(ctx context.Context, _ string, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "artifacts", "resolve frame", localPath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "artifacts", "stat frame", abs, err)
		}
		return "", services.Wrap(services.ErrTransient, "artifacts", "stat frame", abs, err)
	}
	return abs, nil
}

// Read returns the frame bytes.
func (l *Local) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, ok := ParseRef(ref); ok {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "read frame", "s3 ref with local artifact backend", nil)
	}
	return readLocal(ref)
}
