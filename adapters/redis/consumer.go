package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bitmarket/engine"
)

var ErrConsumerClosed = errors.New("consumer is closed")

type consumerOptions struct {
	logger       *slog.Logger
	bufferSize   int
	blockTimeout time.Duration
}

type ConsumerOption func(*consumerOptions)

// WithConsumerLogger 設置日誌記錄器
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(o *consumerOptions) {
		o.logger = logger
	}
}

// WithConsumerBufferSize 設置下游channel的緩衝大小
func WithConsumerBufferSize(size int) ConsumerOption {
	return func(o *consumerOptions) {
		o.bufferSize = size
	}
}

// WithConsumerBlockTimeout 設置阻塞讀取超時時間
func WithConsumerBlockTimeout(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.blockTimeout = d
	}
}

// EventConsumer 自 Redis Stream 訂閱引擎事件。
// 每個實例各自從 stream 尾端開始讀取，用於 SSE 這類
// 只關心即時事件、不需要回放的消費者。
type EventConsumer struct {
	client     *redis.Client
	stream     string
	lastID     string
	downStream chan engine.Event
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	logger     *slog.Logger
	options    consumerOptions
}

func NewEventConsumer(client *redis.Client, stream string, opts ...ConsumerOption) (*EventConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}

	// 默認選項
	options := consumerOptions{
		logger:       slog.Default(),
		bufferSize:   100,
		blockTimeout: time.Second,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &EventConsumer{
		client:  client,
		stream:  stream,
		lastID:  "$",
		closed:  true,
		logger:  options.logger.With(slog.String("caller", "EventConsumer"), slog.String("stream", stream)),
		options: options,
	}, nil
}

func (c *EventConsumer) Start() {
	if !c.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel
	c.downStream = make(chan engine.Event, c.options.bufferSize)
	c.closed = false
	c.logger.Info("starting event consumer")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.downStream)
		defer c.logger.Info("consumer goroutine stopped")

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := c.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{c.stream, c.lastID},
				Count:   1,
				Block:   c.options.blockTimeout,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				if errors.Is(err, redis.Nil) {
					// 阻塞超時，無新訊息
					continue
				}
				c.logger.Error("read stream error", slog.Any("error", err))
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					c.lastID = message.ID
					ev, err := DecodeEvent(message.Values)
					if err != nil {
						c.logger.Error("decode event error",
							slog.String("messageId", message.ID),
							slog.Any("error", err))
						continue
					}
					select {
					case <-ctx.Done():
						return
					case c.downStream <- ev:
					}
				}
			}
		}
	}()
}

// Subscribe 回傳接收事件的唯讀通道
func (c *EventConsumer) Subscribe() <-chan engine.Event {
	return c.downStream
}

func (c *EventConsumer) Close() {
	if c.closed {
		return
	}
	c.logger.Info("closing event consumer")
	c.closed = true
	c.cancelFunc()
	c.wg.Wait()
	c.logger.Info("event consumer closed")
}
