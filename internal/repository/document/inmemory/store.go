package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/realtime"
	repo "taskBoard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store struct {
	docs  map[string]repo.Fields
	mtx   *sync.RWMutex
	paths []string
	feed  realtime.Feed
	now   func() time.Time
}

type Option func(*Store)

func WithFeed(feed realtime.Feed) Option {
	return func(s *Store) {
		s.feed = feed
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]repo.Fields),
		mtx:   &sync.RWMutex{},
		paths: []string{},
		feed:  realtime.NewLocalFeed(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

func (s *Store) QueryCollection(ctx context.Context, collection string, filters ...repo.Filter) ([]repo.Document, error) {
	if !repo.ValidCollection(collection) {
		return nil, fmt.Errorf("%w: коллекция %q", repo.ErrInvalidPath, collection)
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []repo.Document{}
	for _, path := range s.paths {
		parent, id, err := repo.SplitPath(path)
		if err != nil || parent != collection {
			continue
		}
		fields := s.docs[path]
		if !repo.Match(fields, filters) {
			continue
		}
		res = append(res, repo.Document{ID: id, Path: path, Fields: copyFields(fields)})
	}
	return res, nil
}

func (s *Store) GetDocument(ctx context.Context, path string) (repo.Document, error) {
	_, id, err := repo.SplitPath(path)
	if err != nil {
		return repo.Document{}, err
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	fields, ok := s.docs[path]
	if !ok {
		return repo.Document{}, repo.ErrNotFound
	}
	return repo.Document{ID: id, Path: path, Fields: copyFields(fields)}, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters []repo.Filter, onChange func([]repo.Document)) (func(), error) {
	if !repo.ValidCollection(collection) {
		return nil, fmt.Errorf("%w: коллекция %q", repo.ErrInvalidPath, collection)
	}

	stop := realtime.Watch(ctx, s.feed, collection, func(ctx context.Context) ([]repo.Document, error) {
		return s.QueryCollection(ctx, collection, filters...)
	}, onChange)
	return stop, nil
}

func (s *Store) BatchWrite(ctx context.Context, writes []repo.Write) error {
	if len(writes) == 0 {
		return nil
	}

	collections := map[string]struct{}{}
	s.mtx.Lock()
	for _, w := range writes {
		if _, ok := s.docs[w.Path]; !ok {
			s.mtx.Unlock()
			return fmt.Errorf("пакетная запись %s: %w", w.Path, repo.ErrNotFound)
		}
	}
	now := s.now()
	for _, w := range writes {
		merge(s.docs[w.Path], repo.ResolveTimestamps(w.Fields, now))
		parent, _, _ := repo.SplitPath(w.Path)
		collections[parent] = struct{}{}
	}
	s.mtx.Unlock()

	for c := range collections {
		s.publish(ctx, c)
	}
	return nil
}

func (s *Store) AddDocument(ctx context.Context, collection string, fields repo.Fields) (string, error) {
	if !repo.ValidCollection(collection) {
		return "", fmt.Errorf("%w: коллекция %q", repo.ErrInvalidPath, collection)
	}
	id := uuid.NewString()
	if err := s.SetDocument(ctx, collection+"/"+id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetDocument(ctx context.Context, path string, fields repo.Fields) error {
	parent, _, err := repo.SplitPath(path)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	if _, exists := s.docs[path]; !exists {
		s.paths = append(s.paths, path)
	}
	s.docs[path] = copyFields(repo.ResolveTimestamps(fields, s.now()))
	s.mtx.Unlock()

	s.publish(ctx, parent)
	return nil
}

func (s *Store) UpdateDocument(ctx context.Context, path string, fields repo.Fields) error {
	parent, _, err := repo.SplitPath(path)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	existing, ok := s.docs[path]
	if !ok {
		s.mtx.Unlock()
		return repo.ErrNotFound
	}
	merge(existing, repo.ResolveTimestamps(fields, s.now()))
	s.mtx.Unlock()

	s.publish(ctx, parent)
	return nil
}

// удаление отсутствующего документа не считается ошибкой
func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	parent, _, err := repo.SplitPath(path)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	for ind, val := range s.paths {
		if val == path {
			s.paths = append(s.paths[:ind], s.paths[ind+1:]...)
			break
		}
	}
	s.mtx.Unlock()

	if existed {
		s.publish(ctx, parent)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, collection string) {
	if err := s.feed.Publish(ctx, collection); err != nil {
		logger.Warn("Repository: Не удалось оповестить подписчиков",
			zap.String("collection", collection), zap.Error(err))
	}
}

func merge(dst, src repo.Fields) {
	for k, v := range src {
		dst[k] = copyValue(v)
	}
}

func copyFields(fields repo.Fields) repo.Fields {
	out := make(repo.Fields, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch items := v.(type) {
	case []string:
		return append([]string(nil), items...)
	case []any:
		return append([]any(nil), items...)
	}
	return v
}
