package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"framepipe/internal/config"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/services"
)

const defaultPopTimeout = time.Second

// listClient is the part of a valkey list the source needs.
type listClient interface {
	Push(ctx context.Context, key, value string) error
	// Pop blocks up to timeout. ok is false when the wait expired.
	Pop(ctx context.Context, key string, timeout time.Duration) (value string, ok bool, err error)
	Close()
}

// Valkey leases jobs announced on a valkey list.
type Valkey struct {
	list       listClient
	key        string
	store      *queue.Store
	popTimeout time.Duration
	logger     *slog.Logger
}

// DialValkey connects to the configured server and pings it.
func DialValkey(ctx context.Context, cfg config.Dispatch, store *queue.Store, popTimeout time.Duration, logger *slog.Logger) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.ValkeyAddr},
		Password:    cfg.ValkeyPassword,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dispatch", "connect valkey", cfg.ValkeyAddr, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, services.Wrap(services.ErrTransient, "dispatch", "ping valkey", cfg.ValkeyAddr, err)
	}
	return newValkey(&valkeyList{client: client}, cfg.QueueKey, store, popTimeout, logger), nil
}

func newValkey(list listClient, key string, store *queue.Store, popTimeout time.Duration, logger *slog.Logger) *Valkey {
	if popTimeout <= 0 {
		popTimeout = defaultPopTimeout
	}
	return &Valkey{
		list:       list,
		key:        key,
		store:      store,
		popTimeout: popTimeout,
		logger:     logging.NewComponentLogger(logger, "dispatch-valkey"),
	}
}

// Publish implements Source.
func (v *Valkey) Publish(ctx context.Context, jobID string) error {
	if err := v.list.Push(ctx, v.key, jobID); err != nil {
		return services.Wrap(services.ErrTransient, "dispatch", "publish job", jobID, err)
	}
	return nil
}

// Next implements Source. Ids popped for jobs that are already leased or
// finished are dropped.
func (v *Valkey) Next(ctx context.Context, owner string) (*queue.Job, error) {
	id, ok, err := v.list.Pop(ctx, v.key, v.popTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		v.logger.Warn("valkey pop failed; polling job store",
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_pop_failed"),
			logging.String(logging.FieldErrorHint, "check valkey connectivity"),
		)
		return v.store.ClaimNext(ctx, owner)
	}
	if !ok {
		return v.store.ClaimNext(ctx, owner)
	}
	job, err := v.store.Claim(ctx, strings.TrimSpace(id), owner)
	if err != nil {
		return nil, err
	}
	if job == nil {
		v.logger.Debug("dropping announced job that is not claimable", logging.String(logging.FieldJobID, id))
		return v.store.ClaimNext(ctx, owner)
	}
	return job, nil
}

// Close implements Source.
func (v *Valkey) Close() error {
	v.list.Close()
	return nil
}

type valkeyList struct {
	client valkey.Client
}

func (l *valkeyList) Push(ctx context.Context, key, value string) error {
	cmd := l.client.B().Lpush().
		Key(key).
		Element(value).
		Build()
	if _, err := l.client.Do(ctx, cmd).AsInt64(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

func (l *valkeyList) Pop(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	cmd := l.client.B().Brpop().
		Key(key).
		Timeout(timeout.Seconds()).
		Build()
	arr, err := l.client.Do(ctx, cmd).AsStrSlice()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("brpop %s: %w", key, err)
	}
	if len(arr) < 2 {
		return "", false, fmt.Errorf("brpop %s: unexpected reply length %d", key, len(arr))
	}
	return arr[1], true, nil
}

func (l *valkeyList) Close() {
	l.client.Close()
}
