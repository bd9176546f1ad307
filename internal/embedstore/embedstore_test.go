package embedstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framepipe/internal/embedder"
	"framepipe/internal/services"
)

func vectorFor(t *testing.T, seed string) []float32 {
	t.Helper()
	vec, err := embedder.NewHash(embedder.Dimensions).Embed(context.Background(), nil, []byte(seed))
	require.NoError(t, err)
	return vec
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, -0.25, 3.1415927}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestValidateRejectsBadEmbeddings(t *testing.T) {
	good := Embedding{JobID: "job", UnitID: "job-000000", Vector: vectorFor(t, "a")}
	require.NoError(t, Validate(good))

	missingKey := good
	missingKey.UnitID = " "
	assert.ErrorIs(t, Validate(missingKey), services.ErrInvalidInput)

	short := good
	short.Vector = short.Vector[:10]
	assert.ErrorIs(t, Validate(short), services.ErrInvalidInput)

	negative := good
	negative.UnitIndex = -1
	assert.ErrorIs(t, Validate(negative), services.ErrInvalidInput)
}

func TestSQLiteUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	first := Embedding{JobID: "job", UnitID: "job-000001", UnitIndex: 1, ArtifactRef: "/frames/1.jpg", Model: "hash", Vector: vectorFor(t, "one")}
	inserted, err := store.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := first
	second.Vector = vectorFor(t, "other")
	inserted, err = store.Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted, "second write for the same key is a no-op")

	got, err := store.Get(ctx, "job", "job-000001")
	require.NoError(t, err)
	assert.Equal(t, first.Vector, got.Vector, "first write wins")
	assert.Equal(t, "hash", got.Model)
	assert.Equal(t, "/frames/1.jpg", got.ArtifactRef)
	assert.False(t, got.CreatedAt.IsZero())

	count, err := store.Count(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteExistsAndListUnitsOrdering(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	exists, err := store.Exists(ctx, "job", "job-000000")
	require.NoError(t, err)
	assert.False(t, exists)

	for _, idx := range []int{2, 0, 1} {
		unitID := []string{"job-000000", "job-000001", "job-000002"}[idx]
		_, err := store.Upsert(ctx, Embedding{JobID: "job", UnitID: unitID, UnitIndex: idx, ArtifactRef: unitID, Vector: vectorFor(t, unitID)})
		require.NoError(t, err)
	}
	_, err = store.Upsert(ctx, Embedding{JobID: "other", UnitID: "other-000000", ArtifactRef: "x", Vector: vectorFor(t, "x")})
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "job", "job-000000")
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := store.ListUnits(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-000000", "job-000001", "job-000002"}, ids)

	ids, err = store.ListUnits(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLiteGetMissingIsNotFound(t *testing.T) {
	_, err := openSQLite(t).Get(context.Background(), "job", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestSQLiteRejectsWrongDimensions(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	inserted, err := store.Upsert(ctx, Embedding{JobID: "job", UnitID: "u", Vector: make([]float32, 3)})
	assert.False(t, inserted)
	assert.Equal(t, services.KindTerminalInput, services.Classify(err))

	count, err := store.Count(ctx, "job")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostgresIntegration(t *testing.T) {
	url := os.Getenv("FRAMEPIPE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FRAMEPIPE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	jobID := "it-" + filepath.Base(t.TempDir())
	_, err = store.pool.Exec(ctx, `DELETE FROM embeddings WHERE job_id = $1`, jobID)
	require.NoError(t, err)

	e := Embedding{JobID: jobID, UnitID: jobID + "-000000", ArtifactRef: "ref", Model: "hash", Vector: vectorFor(t, jobID)}
	inserted, err := store.Upsert(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = store.Upsert(ctx, e)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.Get(ctx, jobID, e.UnitID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, e.Vector, got.Vector, 1e-6)

	ids, err := store.ListUnits(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.UnitID}, ids)
}
