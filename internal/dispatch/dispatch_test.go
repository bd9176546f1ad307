package dispatch

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framepipe/internal/config"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/testsupport"
)

type fakeList struct {
	mu     sync.Mutex
	items  []string
	popErr error
	closed bool
}

func (f *fakeList) Push(_ context.Context, _ string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]string{value}, f.items...)
	return nil
}

func (f *fakeList) Pop(context.Context, string, time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.popErr != nil {
		return "", false, f.popErr
	}
	if len(f.items) == 0 {
		return "", false, nil
	}
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	return last, true, nil
}

func (f *fakeList) Close() { f.closed = true }

func TestStoreSourceClaimsOldestJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := testsupport.MustSubmit(t, store, "/videos/a.mp4")
	testsupport.MustSubmit(t, store, "/videos/b.mp4")

	source, err := New(context.Background(), cfg, store, nil)
	require.NoError(t, err)
	require.IsType(t, &StoreSource{}, source)
	require.NoError(t, source.Publish(context.Background(), first.ID))

	job, err := source.Next(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, first.ID, job.ID)
	assert.Equal(t, "worker-1", job.Owner)
}

func TestValkeyNextClaimsAnnouncedJob(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSubmit(t, store, "/videos/older.mp4")
	announced := testsupport.MustSubmit(t, store, "/videos/newer.mp4")

	list := &fakeList{}
	source := newValkey(list, "framepipe:jobs", store, time.Millisecond, logging.NewNop())
	require.NoError(t, source.Publish(ctx, announced.ID))

	job, err := source.Next(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, announced.ID, job.ID, "announced id wins over store order")

	require.NoError(t, source.Close())
	assert.True(t, list.closed)
}

func TestValkeyNextFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	pending := testsupport.MustSubmit(t, store, "/videos/a.mp4")

	source := newValkey(&fakeList{}, "k", store, time.Millisecond, nil)
	job, err := source.Next(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, pending.ID, job.ID)

	job, err = source.Next(ctx, "worker-2")
	require.NoError(t, err)
	assert.Nil(t, job, "leased job must not be handed out twice")
}

func TestValkeyNextDropsStaleAnnouncements(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustSubmit(t, store, "/videos/a.mp4")
	_, err := store.Claim(ctx, job.ID, "worker-1")
	require.NoError(t, err)

	list := &fakeList{}
	source := newValkey(list, "k", store, time.Millisecond, nil)
	require.NoError(t, source.Publish(ctx, job.ID))
	require.NoError(t, source.Publish(ctx, "missing-job"))

	for range 2 {
		next, err := source.Next(ctx, "worker-2")
		require.NoError(t, err)
		assert.Nil(t, next)
	}
	assert.Empty(t, list.items)
}

func TestValkeyPopErrorPollsStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	pending := testsupport.MustSubmit(t, store, "/videos/a.mp4")

	source := newValkey(&fakeList{popErr: errors.New("connection refused")}, "k", store, time.Millisecond, nil)
	job, err := source.Next(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, pending.ID, job.ID)
	assert.Equal(t, queue.StatusPending, job.Status)
}

func TestValkeyIntegration(t *testing.T) {
	addr := os.Getenv("FRAMEPIPE_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("FRAMEPIPE_TEST_VALKEY_ADDR not set")
	}
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.MustSubmit(t, store, "/videos/a.mp4")

	dispatchCfg := config.Dispatch{
		ValkeyAddr:     addr,
		ValkeyPassword: os.Getenv("FRAMEPIPE_TEST_VALKEY_PASSWORD"),
		QueueKey:       "framepipe:test:" + job.ID,
	}
	source, err := DialValkey(ctx, dispatchCfg, store, 100*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = source.Close() })

	require.NoError(t, source.Publish(ctx, job.ID))
	next, err := source.Next(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, job.ID, next.ID)
}
