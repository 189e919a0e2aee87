package realtime

import (
	"context"
	"fmt"
	"time"

	"taskBoard/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "docstore:"

// RedisFeed разносит сигналы об изменениях между процессами через pub/sub.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	if client == nil {
		panic("realtime.NewRedisFeed: client is nil")
	}
	return &RedisFeed{client: client}
}

func Channel(collection string) string {
	return channelPrefix + collection
}

func (f *RedisFeed) Publish(ctx context.Context, collection string) error {
	if err := f.client.Publish(ctx, Channel(collection), "changed").Err(); err != nil {
		return fmt.Errorf("публикация изменения %s: %w", collection, err)
	}
	return nil
}

func (f *RedisFeed) Listen(ctx context.Context, collection string, fn func()) func() {
	ctx, cancel := context.WithCancel(ctx)
	go f.listen(ctx, collection, fn)
	return cancel
}

func (f *RedisFeed) listen(ctx context.Context, collection string, fn func()) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 200 * time.Millisecond
	retry.MaxInterval = 10 * time.Second
	retry.MaxElapsedTime = 0

	for {
		sub := f.client.Subscribe(ctx, Channel(collection))
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			wait := retry.NextBackOff()
			logger.Warn("Realtime: Не удалось подписаться на канал",
				zap.String("collection", collection),
				zap.Duration("retry_in", wait),
				zap.Error(err))
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		retry.Reset()

		if !f.consume(ctx, sub, fn) {
			_ = sub.Close()
			return
		}
		_ = sub.Close()
		logger.Warn("Realtime: Канал pub/sub закрыт, переподключение", zap.String("collection", collection))
		if !sleep(ctx, retry.NextBackOff()) {
			return
		}
	}
}

// consume возвращает false, когда контекст отменён.
func (f *RedisFeed) consume(ctx context.Context, sub *redis.PubSub, fn func()) bool {
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-ch:
			if !ok {
				return ctx.Err() == nil
			}
			fn()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
