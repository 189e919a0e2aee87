package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// openStream переводит ответ в text/event-stream. Таймаут записи сервера
// для потока снимается.
func openStream(w http.ResponseWriter) (*eventStream, error) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("поток не поддерживается: %w", err)
	}
	return &eventStream{w: w, rc: rc}, nil
}

func (s *eventStream) send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("кодирование события %s: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// latest хранит только последнее значение: медленный клиент пропускает
// промежуточные состояния, но не тормозит источник.
type latest[T any] struct {
	ch chan T
}

func newLatest[T any]() *latest[T] {
	return &latest[T]{ch: make(chan T, 1)}
}

func (l *latest[T]) put(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// serveStream пишет события до отключения клиента.
func serveStream[T any](ctx context.Context, stream *eventStream, event string, updates *latest[T], encode func(T) any) {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates.ch:
			if err := stream.send(event, encode(v)); err != nil {
				logger.Warn("HTTP: Поток событий прерван", zap.String("event", event), zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}
