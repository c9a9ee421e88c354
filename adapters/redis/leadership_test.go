package redis

import (
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestNewLeaderLock(t *testing.T) {
	tests := []struct {
		name    string
		client  *redis.Client
		key     string
		opts    []LeaderLockOption
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid configuration",
			client:  redis.NewClient(&redis.Options{}),
			key:     "lock:auction-events:tick",
			wantErr: false,
		},
		{
			name:    "nil client",
			client:  nil,
			key:     "lock:auction-events:tick",
			wantErr: true,
			errMsg:  "redis client cannot be nil",
		},
		{
			name:    "empty key",
			client:  redis.NewClient(&redis.Options{}),
			key:     "",
			wantErr: true,
			errMsg:  "key cannot be empty",
		},
		{
			name:   "custom options",
			client: redis.NewClient(&redis.Options{}),
			key:    "lock:auction-events:archive",
			opts: []LeaderLockOption{
				WithLeaderLockLeaseTTL(4 * time.Second),
				WithLeaderLockRetryDelay(100 * time.Millisecond),
				WithLeaderLockRenewInterval(time.Second),
				WithLeaderLockLogger(slog.Default()),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			lock, err := NewLeaderLock(tt.client, tt.key, tt.opts...)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, lock)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, lock)
			}

			if tt.client != nil {
				tt.client.Close()
			}
		})
	}
}

func TestLeaderLock_RenewIntervalDefault(t *testing.T) {
	defer goleak.VerifyNone(t)
	client := redis.NewClient(&redis.Options{})
	defer client.Close()

	lock, err := NewLeaderLock(client, "lock:auction-events:tick",
		WithLeaderLockLeaseTTL(9*time.Second))
	assert.NoError(t, err)

	// 未指定續期間隔時取租約存活時間的1/3
	impl, ok := lock.(*LeaderLock)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, impl.options.renewInterval)
}
