package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskBoard/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	RequestHeader            = "X-Request-ID"
)

// RequestID берёт id из заголовка клиента или выдаёт новый.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// statusRecorder запоминает код ответа и объём тела.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	sent   bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.sent {
		return
	}
	sr.status = code
	sr.sent = true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.sent {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Flush нужен потокам событий.
func (sr *statusRecorder) Flush() {
	if !sr.sent {
		sr.WriteHeader(http.StatusOK)
	}
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func isStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GetRequestID(r.Context())
		stream := isStream(r)

		logger.Info("HTTP_IN: Начало запроса",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Bool("stream", stream),
			zap.String("client_ip", clientIP(r)),
		)

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		level := zap.InfoLevel
		switch {
		case sr.status >= 500:
			level = zap.ErrorLevel
		case sr.status >= 400:
			level = zap.WarnLevel
		}
		msg := "HTTP_OUT: Завершение запроса"
		if stream {
			msg = "HTTP_OUT: Поток закрыт"
		}
		logger.Log(level, msg,
			zap.String("request_id", requestID),
			zap.Int("status", sr.status),
			zap.Int("bytes_written", sr.bytes),
			zap.Duration("ms", time.Since(start)),
		)
	})
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimit ограничивает число запросов с одного адреса за минуту.
// Потоки событий не считаются: клиент открывает их один раз и держит.
func RateLimit(rpm int) func(http.Handler) http.Handler {
	const period = time.Minute
	var (
		mtx       sync.Mutex
		windows   = make(map[string]*window)
		nextSweep = time.Now().Add(period)
	)

	// take возвращает остаток и момент сброса; ok=false если лимит исчерпан.
	take := func(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
		mtx.Lock()
		defer mtx.Unlock()

		if now.After(nextSweep) {
			for k, win := range windows {
				if now.After(win.resetAt) {
					delete(windows, k)
				}
			}
			nextSweep = now.Add(period)
		}

		win, found := windows[key]
		if !found || now.After(win.resetAt) {
			win = &window{resetAt: now.Add(period)}
			windows[key] = win
		}
		if win.count >= rpm {
			return 0, win.resetAt, false
		}
		win.count++
		return rpm - win.count, win.resetAt, true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStream(r) {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			remaining, resetAt, ok := take(clientIP(r), now)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rpm))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(resetAt.Sub(now).Seconds()) + 1
			logger.Warn("HTTP: Превышен лимит запросов",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("client_ip", clientIP(r)))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "too many requests, try again later",
				"retry_after": retryAfter,
				"request_id":  GetRequestID(r.Context()),
			})
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
