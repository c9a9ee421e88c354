package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/chanx"

	"bitmarket/engine"
)

var ErrProducerClosed = errors.New("producer is closed")

type producerOptions struct {
	logger     *slog.Logger
	bufferSize int
}

type ProducerOption func(*producerOptions)

// WithProducerLogger 設置日誌記錄器
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(o *producerOptions) {
		o.logger = logger
	}
}

// WithProducerBufferSize 設置緩衝大小
func WithProducerBufferSize(size int) ProducerOption {
	return func(o *producerOptions) {
		o.bufferSize = size
	}
}

// EventProducer 將引擎事件發布到 Redis Stream，
// 供其他服務實例的 SSE 廣播與封存工作者消費。
// 發布是非同步的：事件先進入無界緩衝，再由背景 goroutine 寫入 stream，
// 避免 Redis 延遲反壓到引擎的同步操作。
type EventProducer struct {
	client     *redis.Client
	stream     string
	upstream   *chanx.UnboundedChan[engine.Event]
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	logger     *slog.Logger
	options    producerOptions
}

func NewEventProducer(client *redis.Client, stream string, opts ...ProducerOption) (*EventProducer, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}

	// 默認選項
	options := producerOptions{
		logger:     slog.Default(),
		bufferSize: 100,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &EventProducer{
		client:  client,
		stream:  stream,
		closed:  true,
		logger:  options.logger.With(slog.String("caller", "EventProducer"), slog.String("stream", stream)),
		options: options,
	}, nil
}

func (p *EventProducer) Start() {
	if !p.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.upstream = chanx.NewUnboundedChan[engine.Event](ctx, p.options.bufferSize)
	p.cancelFunc = cancel
	p.closed = false
	p.logger.Info("starting event producer")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.logger.Info("producer goroutine stopped")

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-p.upstream.Out:
				message, err := EncodeEvent(ev)
				if err != nil {
					p.logger.Error("encode event error", slog.Any("error", err))
					continue
				}
				id, err := p.client.XAdd(ctx, &redis.XAddArgs{
					Stream: p.stream,
					Values: message,
				}).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					p.logger.Error("publish event error", slog.Any("error", err))
					continue
				}
				p.logger.Debug("event published",
					slog.String("messageId", id),
					slog.String("type", string(ev.Type)),
					slog.Uint64("auctionID", uint64(ev.AuctionID)))
			}
		}
	}()
}

// Publish 將事件排入發布緩衝
func (p *EventProducer) Publish(ev engine.Event) error {
	if p.closed {
		return ErrProducerClosed
	}
	p.upstream.In <- ev
	return nil
}

func (p *EventProducer) Close() {
	if p.closed {
		return
	}
	p.logger.Info("closing event producer")
	p.closed = true
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("event producer closed")
}
