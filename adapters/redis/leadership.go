package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// LeaderLock 以redsync租約在多個服務實例之間選出單一工作者。
// 兩種工作需要這個機制：推進引擎時脈的ticker（同一時間只能有
// 一個實例在驅動結算），以及嚴格順序模式下的事件歸檔消費者。
type LeaderLock struct {
	lease   *redsync.Mutex
	logger  *slog.Logger
	options leaderLockOptions
}

type leaderLockOptions struct {
	leaseTTL      time.Duration
	retryDelay    time.Duration
	renewInterval time.Duration
	logger        *slog.Logger
}

type LeaderLockOption func(*leaderLockOptions)

// WithLeaderLockLeaseTTL 設置租約的存活時間
func WithLeaderLockLeaseTTL(d time.Duration) LeaderLockOption {
	return func(o *leaderLockOptions) {
		o.leaseTTL = d
	}
}

// WithLeaderLockRetryDelay 設置落選後再次競選前的等待時間
func WithLeaderLockRetryDelay(d time.Duration) LeaderLockOption {
	return func(o *leaderLockOptions) {
		o.retryDelay = d
	}
}

// WithLeaderLockRenewInterval 設置租約續期間隔
func WithLeaderLockRenewInterval(d time.Duration) LeaderLockOption {
	return func(o *leaderLockOptions) {
		o.renewInterval = d
	}
}

// WithLeaderLockLogger 設置日誌記錄器
func WithLeaderLockLogger(logger *slog.Logger) LeaderLockOption {
	return func(o *leaderLockOptions) {
		o.logger = logger
	}
}

// NewLeaderLock 建立一個以key識別工作的領導者租約
func NewLeaderLock(client *redis.Client, key string, opts ...LeaderLockOption) (ILeaderLock, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	// 默認選項
	options := leaderLockOptions{
		leaseTTL:   8 * time.Second,
		retryDelay: 500 * time.Millisecond,
		logger:     slog.Default(),
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	// 續期必須比租約到期更頻繁，未設置時取租約存活時間的1/3
	if options.renewInterval <= 0 {
		options.renewInterval = options.leaseTTL / 3
	}

	rs := redsync.New(goredis.NewPool(client))
	return &LeaderLock{
		lease: rs.NewMutex(
			key,
			redsync.WithExpiry(options.leaseTTL),
			redsync.WithTries(1),
		),
		logger:  options.logger.With(slog.String("caller", "LeaderLock"), slog.String("key", key)),
		options: options,
	}, nil
}

// Campaign 反覆競選直到ctx結束。當選後以任期context呼叫lead，
// 續期失敗或租約遺失時該context會被取消；lead返回後釋放租約
// 並重新競選。回傳值是ctx的結束原因。
func (l *LeaderLock) Campaign(ctx context.Context, lead func(ctx context.Context)) error {
	for {
		if err := l.lease.LockContext(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// 落選或通訊異常都等一輪再試；
			// 持鎖實例崩潰時租約會在TTL後自然釋放
			l.logger.Debug("leadership campaign lost, retrying", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.options.retryDelay):
			}
			continue
		}

		term, abdicate := context.WithCancel(ctx)
		renewStopped := make(chan struct{})
		go l.keepLease(term, abdicate, renewStopped)

		l.logger.Info("leadership acquired")
		lead(term)

		abdicate()
		<-renewStopped
		if _, err := l.lease.Unlock(); err != nil {
			// 租約可能已經過期或被接手，留給TTL收尾
			l.logger.Warn("failed to release leadership lease", slog.Any("error", err))
		}
		l.logger.Info("leadership released")

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// keepLease 定期為租約續期，失敗時取消任期context通知leader下台
func (l *LeaderLock) keepLease(term context.Context, abdicate context.CancelFunc, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(l.options.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-term.Done():
			return
		case <-ticker.C:
			ok, err := l.lease.Extend()
			if err != nil || !ok {
				l.logger.Warn("leadership lease lost", slog.Any("error", err))
				abdicate()
				return
			}
		}
	}
}
