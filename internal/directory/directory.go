package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/user"
	"taskBoard/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrUnknownUser = errors.New("пользователь не найден")

const (
	cachePrefix     = "directory:"
	DefaultCacheTTL = 10 * time.Minute
)

// Directory переводит email участника в uid по коллекции users.
type Directory struct {
	store repository.DocumentStore
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

type Option func(*Directory)

// WithCache включает кэш в Redis. nil отключает кэш.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(d *Directory) {
		d.cache = client
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

func New(store repository.DocumentStore, opts ...Option) *Directory {
	d := &Directory{store: store, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func CacheKey(email string) string {
	return cachePrefix + normalize(email)
}

func (d *Directory) LookupUID(ctx context.Context, email string) (string, error) {
	email = normalize(email)
	if email == "" {
		return "", ErrUnknownUser
	}

	if uid, ok := d.cached(ctx, email); ok {
		return uid, nil
	}

	v, err, _ := d.group.Do(email, func() (any, error) {
		return d.lookup(ctx, email)
	})
	if err != nil {
		return "", err
	}
	uid := v.(string)
	d.remember(ctx, email, uid)
	return uid, nil
}

func (d *Directory) lookup(ctx context.Context, email string) (string, error) {
	docs, err := d.store.QueryCollection(ctx, repository.UsersCollection, repository.Eq("email", email))
	if err != nil {
		return "", fmt.Errorf("поиск пользователя %s: %w", email, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}

	var profile user.Profile
	if err := repository.Decode(docs[0], &profile); err != nil {
		return "", err
	}
	if profile.UID == "" {
		profile.UID = docs[0].ID
	}
	return profile.UID, nil
}

// Remember создаёт users/{uid} при первом появлении пользователя.
func (d *Directory) Remember(ctx context.Context, id user.Identity) error {
	if id.Empty() {
		return nil
	}
	path := repository.UserPath(id.UID)
	if _, err := d.store.GetDocument(ctx, path); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("чтение профиля: %w", err)
	}

	email := normalize(id.Email)
	fields := repository.Fields{"uid": id.UID, "email": email}
	if err := d.store.SetDocument(ctx, path, fields); err != nil {
		return fmt.Errorf("сохранение профиля: %w", err)
	}
	logger.Info("Directory: Новый пользователь", zap.String("uid", id.UID), zap.String("email", email))
	d.remember(ctx, email, id.UID)
	return nil
}

func (d *Directory) cached(ctx context.Context, email string) (string, bool) {
	if d.cache == nil {
		return "", false
	}
	uid, err := d.cache.Get(ctx, CacheKey(email)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Directory: Ошибка чтения кэша", zap.Error(err))
		}
		return "", false
	}
	return uid, true
}

func (d *Directory) remember(ctx context.Context, email, uid string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, CacheKey(email), uid, d.ttl).Err(); err != nil {
		logger.Warn("Directory: Ошибка записи кэша", zap.Error(err))
	}
}

func normalize(email string) string {
	return user.NormalizeEmail(email)
}
