package testsupport

import (
	"context"
	"testing"

	"framepipe/internal/config"
	"framepipe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustSubmit submits inputRef and fails the test on error.
func MustSubmit(t testing.TB, store *queue.Store, inputRef string) *queue.Job {
	t.Helper()

	job, _, err := store.Submit(context.Background(), inputRef)
	if err != nil {
		t.Fatalf("store.Submit: %v", err)
	}
	return job
}
