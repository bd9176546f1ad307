// Package artifacts keeps extracted frames where the embedding stage can read
// them back: on local disk next to the frames directory, or in an S3 bucket.
//
// Artifact refs are plain file paths for local storage and s3://bucket/key
// URIs for S3. Readers accept both forms so a job extracted with one backend
// can still be processed after the configuration changes.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"framepipe/internal/config"
	"framepipe/internal/services"
)

// Reader loads the bytes behind an artifact ref.
type Reader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Store persists extracted frames and returns their artifact refs.
type Store interface {
	Reader
	Put(ctx context.Context, jobID, localPath string) (string, error)
}

// New builds the artifact store selected by cfg.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Artifacts.Backend {
	case config.ArtifactsLocal, "":
		return NewLocal(), nil
	case config.ArtifactsS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.Artifacts.S3Bucket,
			Prefix:    cfg.Artifacts.S3Prefix,
			Region:    cfg.Artifacts.S3Region,
			Endpoint:  cfg.Artifacts.S3Endpoint,
			AccessKey: cfg.Artifacts.S3AccessKey,
			SecretKey: cfg.Artifacts.S3SecretKey,
		})
	default:
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "select backend",
			fmt.Sprintf("unsupported backend %q", cfg.Artifacts.Backend), nil)
	}
}

// ParseRef splits an s3://bucket/key ref. ok is false for anything else.
func ParseRef(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(ref), "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// FormatRef renders an s3 ref.
func FormatRef(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

func readLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, services.Wrap(services.ErrNotFound, "artifacts", "read frame", path, err)
	case err != nil:
		return nil, services.Wrap(services.ErrTransient, "artifacts", "read frame", path, err)
	}
	return data, nil
}
