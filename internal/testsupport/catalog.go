package testsupport

import (
	"context"
	"testing"

	"framepipe/internal/config"
	"framepipe/internal/embedstore"
	"framepipe/internal/metastore"
	"framepipe/internal/stores"
)

// MustOpenStores opens the embedding and metadata stores for cfg and
// registers cleanup.
func MustOpenStores(t testing.TB, cfg *config.Config) *stores.Set {
	t.Helper()

	set, err := stores.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("stores.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = set.Close()
	})
	return set
}

// MustOpenEmbeddings opens a standalone embedding store in the test catalog.
func MustOpenEmbeddings(t testing.TB, cfg *config.Config) embedstore.Store {
	t.Helper()

	store, err := embedstore.OpenSQLite(context.Background(), cfg.CatalogDBPath())
	if err != nil {
		t.Fatalf("embedstore.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenMetadata opens a standalone metadata store in the test catalog.
func MustOpenMetadata(t testing.TB, cfg *config.Config) metastore.Store {
	t.Helper()

	store, err := metastore.OpenSQLite(context.Background(), cfg.CatalogDBPath())
	if err != nil {
		t.Fatalf("metastore.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
