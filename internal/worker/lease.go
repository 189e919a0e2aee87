package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lease - взаимное исключение проходов проверки между процессами.
type Lease interface {
	// Acquire возвращает ok=false, если аренда занята.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

func LeaseKey(uid string) string {
	return "scan:lease:" + uid
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease держит аренду ключом SET NX PX с уникальным токеном.
type RedisLease struct {
	client *redis.Client
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("аренда %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// контекст прохода к этому моменту может быть уже отменён
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logger.Warn("Worker: Не удалось освободить аренду", zap.String("key", key), zap.Error(err))
			}
		})
	}
	return release, true, nil
}

// LocalLease - аренда внутри одного процесса.
type LocalLease struct {
	mtx    sync.Mutex
	held   map[string]localHold
	now    func() time.Time
	nextID uint64
}

type localHold struct {
	id      uint64
	expires time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{held: make(map[string]localHold), now: time.Now}
}

func (l *LocalLease) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, false, nil
	}
	l.nextID++
	id := l.nextID
	l.held[key] = localHold{id: id, expires: now.Add(ttl)}

	return func() {
		l.mtx.Lock()
		defer l.mtx.Unlock()
		if h, ok := l.held[key]; ok && h.id == id {
			delete(l.held, key)
		}
	}, true, nil
}
