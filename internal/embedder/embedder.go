// Package embedder turns frame bytes into fixed-width embedding vectors.
//
// Two models are available: a deterministic hash embedder that needs no
// network access and a Gemini embedder backed by google.golang.org/genai.
// Both return unit-length vectors of exactly Dimensions values.
package embedder

import (
	"context"
	"fmt"
	"math"

	"framepipe/internal/activity"
	"framepipe/internal/config"
	"framepipe/internal/services"
)

// Dimensions is the width of every embedding vector.
const Dimensions = 512

// Embedder computes an embedding for one frame. Long-running implementations
// report progress through hb.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, hb activity.Heartbeater, frame []byte) ([]float32, error)
}

// New builds the embedder selected by cfg.
func New(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderHash, "":
		return NewHash(cfg.Embedding.Dimensions), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.Embedding.GeminiAPIKey, cfg.Embedding.GeminiModel, cfg.Embedding.Dimensions)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "embedder", "select provider",
			fmt.Sprintf("unsupported provider %q", cfg.Embedding.Provider), nil)
	}
}

// Validate rejects vectors of the wrong width or with non-finite values.
func Validate(vector []float32, dims int) error {
	if len(vector) != dims {
		return services.Wrap(services.ErrInvalidInput, "embedder", "validate vector",
			fmt.Sprintf("expected %d dimensions, got %d", dims, len(vector)), nil)
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return services.Wrap(services.ErrInvalidInput, "embedder", "validate vector",
				fmt.Sprintf("non-finite value at index %d", i), nil)
		}
	}
	return nil
}

// Normalize scales vector to unit length in place. Zero vectors are left as is.
func Normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}
	norm := math.Sqrt(sum)
	for i, v := range vector {
		vector[i] = float32(float64(v) / norm)
	}
	return vector
}
