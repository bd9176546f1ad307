package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"framepipe/internal/activity"
	"framepipe/internal/services"
)

// Hash derives a deterministic pseudo-embedding from the frame bytes. Equal
// frames always map to equal vectors.
type Hash struct {
	dims int
}

// NewHash returns a hash embedder producing dims-wide vectors.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = Dimensions
	}
	return &Hash{dims: dims}
}

// Name implements Embedder.
func (h *Hash) Name() string { return "hash" }

// Embed implements Embedder.
func (h *Hash) Embed(ctx context.Context, _ activity.Heartbeater, frame []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "embedder", "hash frame", "empty frame", nil)
	}
	seed := sha256.Sum256(frame)
	vector := make([]float32, h.dims)

	var block [sha256.Size + 4]byte
	copy(block[:], seed[:])
	for i := 0; i < h.dims; i += sha256.Size / 4 {
		binary.BigEndian.PutUint32(block[sha256.Size:], uint32(i))
		digest := sha256.Sum256(block[:])
		for j := 0; j < sha256.Size/4 && i+j < h.dims; j++ {
			word := binary.BigEndian.Uint32(digest[j*4:])
			vector[i+j] = float32(word)/float32(1<<31) - 1
		}
	}
	return Normalize(vector), nil
}
