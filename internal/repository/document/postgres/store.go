package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/realtime"
	repo "taskBoard/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const slowQuery = 100 * time.Millisecond

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

type Storage struct {
	pool       *pgxpool.Pool
	feed       realtime.Feed
	connString string
	now        func() time.Time
}

func New(ctx context.Context, connString string, feed realtime.Feed, poolCfg PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	if poolCfg.MaxConns > 0 {
		config.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		config.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	connectTimeout := poolCfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = connectTimeout
	err = backoff.RetryNotify(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(retry, ctx), func(err error, wait time.Duration) {
		logger.Warn("Repository: PostgreSQL недоступен, повтор", zap.Duration("retry_in", wait), zap.Error(err))
	})
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	if feed == nil {
		feed = realtime.NewLocalFeed()
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, feed: feed, connString: connString, now: time.Now}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) QueryCollection(ctx context.Context, collection string, filters ...repo.Filter) ([]repo.Document, error) {
	if !repo.ValidCollection(collection) {
		return nil, fmt.Errorf("%w: коллекция %q", repo.ErrInvalidPath, collection)
	}
	start := time.Now()

	query, args, err := buildQuery(collection, filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить документы", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение документов %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []repo.Document{}
	for rows.Next() {
		var (
			doc  repo.Document
			data []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Path, &data); err != nil {
			return nil, fmt.Errorf("сканирование документа: %w", err)
		}
		if err := json.Unmarshal(data, &doc.Fields); err != nil {
			return nil, fmt.Errorf("разбор документа %s: %w", doc.Path, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.String("collection", collection), zap.Duration("ms", time.Since(start)))
	}
	return docs, nil
}

// buildQuery превращает фильтры в условия jsonb-включения (@>).
func buildQuery(collection string, filters []repo.Filter) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, path, data FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range filters {
		var probe map[string]any
		switch f.Op {
		case repo.OpEqual:
			probe = map[string]any{f.Field: f.Value}
		case repo.OpArrayContains:
			probe = map[string]any{f.Field: []any{f.Value}}
		default:
			return "", nil, fmt.Errorf("неподдерживаемый оператор %q", f.Op)
		}
		payload, err := json.Marshal(probe)
		if err != nil {
			return "", nil, fmt.Errorf("кодирование фильтра %s: %w", f.Field, err)
		}
		args = append(args, string(payload))
		fmt.Fprintf(&sb, ` AND data @> $%d::jsonb`, len(args))
	}
	sb.WriteString(` ORDER BY seq`)
	return sb.String(), args, nil
}

func (s *Storage) GetDocument(ctx context.Context, path string) (repo.Document, error) {
	if _, _, err := repo.SplitPath(path); err != nil {
		return repo.Document{}, err
	}

	var (
		doc  repo.Document
		data []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, path, data FROM documents WHERE path = $1`, path).Scan(&doc.ID, &doc.Path, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Document{}, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить документ", err, zap.String("path", path))
		return repo.Document{}, fmt.Errorf("получение документа: %w", err)
	}
	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return repo.Document{}, fmt.Errorf("разбор документа %s: %w", path, err)
	}
	return doc, nil
}

func (s *Storage) Subscribe(ctx context.Context, collection string, filters []repo.Filter, onChange func([]repo.Document)) (func(), error) {
	if !repo.ValidCollection(collection) {
		return nil, fmt.Errorf("%w: коллекция %q", repo.ErrInvalidPath, collection)
	}
	stop := realtime.Watch(ctx, s.feed, collection, func(ctx context.Context) ([]repo.Document, error) {
		return s.QueryCollection(ctx, collection, filters...)
	}, onChange)
	return stop, nil
}

// BatchWrite выполняет все обновления в одной транзакции.
func (s *Storage) BatchWrite(ctx context.Context, writes []repo.Write) error {
	if len(writes) == 0 {
		return nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	collections := map[string]struct{}{}
	now := s.now()
	for _, w := range writes {
		parent, _, err := repo.SplitPath(w.Path)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(repo.ResolveTimestamps(w.Fields, now))
		if err != nil {
			return fmt.Errorf("кодирование %s: %w", w.Path, err)
		}
		batch.Queue(`UPDATE documents SET data = data || $2::jsonb, updated_at = NOW() WHERE path = $1`, w.Path, string(payload))
		collections[parent] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	results := tx.SendBatch(ctx, batch)
	for _, w := range writes {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			logger.Error("Repository: Ошибка пакетной записи", err, zap.String("path", w.Path))
			return fmt.Errorf("пакетная запись %s: %w", w.Path, err)
		}
		if tag.RowsAffected() == 0 {
			_ = results.Close()
			return fmt.Errorf("пакетная запись %s: %w", w.Path, repo.ErrNotFound)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("завершение пакета: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: Не удалось зафиксировать транзакцию", err)
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленная операция", zap.Int("writes", len(writes)), zap.Duration("ms", time.Since(start)))
	}
	for c := range collections {
		s.publish(ctx, c)
	}
	return nil
}

func (s *Storage) AddDocument(ctx context.Context, collection string, fields repo.Fields) (string, error) {
	if !repo.ValidCollection(collection) {
		return "", fmt.Errorf("%w: коллекция %q", repo.ErrInvalidPath, collection)
	}
	id := uuid.NewString()
	if err := s.SetDocument(ctx, collection+"/"+id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) SetDocument(ctx context.Context, path string, fields repo.Fields) error {
	parent, id, err := repo.SplitPath(path)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(repo.ResolveTimestamps(fields, s.now()))
	if err != nil {
		return fmt.Errorf("кодирование %s: %w", path, err)
	}

	query := `INSERT INTO documents (path, collection, id, data)
				VALUES ($1, $2, $3, $4::jsonb)
				ON CONFLICT (path) DO UPDATE
				SET data = EXCLUDED.data,
					updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, path, parent, id, string(payload)); err != nil {
		logger.Error("Repository: Не удалось сохранить документ", err, zap.String("path", path))
		return fmt.Errorf("сохранение документа: %w", err)
	}
	s.publish(ctx, parent)
	return nil
}

func (s *Storage) UpdateDocument(ctx context.Context, path string, fields repo.Fields) error {
	parent, _, err := repo.SplitPath(path)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(repo.ResolveTimestamps(fields, s.now()))
	if err != nil {
		return fmt.Errorf("кодирование %s: %w", path, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = data || $2::jsonb, updated_at = NOW() WHERE path = $1`,
		path, string(payload))
	if err != nil {
		logger.Error("Repository: Не удалось обновить документ", err, zap.String("path", path))
		return fmt.Errorf("обновление документа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	s.publish(ctx, parent)
	return nil
}

func (s *Storage) DeleteDocument(ctx context.Context, path string) error {
	parent, _, err := repo.SplitPath(path)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		logger.Error("Repository: Не удалось удалить документ", err, zap.String("path", path))
		return fmt.Errorf("удаление документа: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.publish(ctx, parent)
	}
	return nil
}

func (s *Storage) publish(ctx context.Context, collection string) {
	if err := s.feed.Publish(ctx, collection); err != nil {
		logger.Warn("Repository: Не удалось оповестить подписчиков",
			zap.String("collection", collection), zap.Error(err))
	}
}
