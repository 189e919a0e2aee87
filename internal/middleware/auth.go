package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/user"

	"go.uber.org/zap"
)

const IdentityKey contextKey = "identity"

// TokenVerifier проверяет bearer-токен и возвращает пользователя.
type TokenVerifier interface {
	Verify(raw string) (user.Identity, error)
}

// IdentityHook вызывается для каждого проверенного пользователя.
type IdentityHook func(ctx context.Context, id user.Identity)

// Auth пропускает только запросы с валидным токеном. Токен берётся из
// Authorization, а для потоков событий ещё и из параметра access_token.
func Auth(verifier TokenVerifier, hooks ...IdentityHook) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, r, "sign in required")
				return
			}

			id, err := verifier.Verify(raw)
			if err != nil {
				logger.Warn("HTTP: Неверный токен",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("client_ip", r.RemoteAddr),
					zap.Error(err))
				unauthorized(w, r, "invalid token")
				return
			}

			for _, hook := range hooks {
				hook(r.Context(), id)
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		return header
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      "unauthorized",
		"message":    message,
		"request_id": GetRequestID(r.Context()),
	})
}

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func GetIdentity(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(user.Identity)
	if !ok || id.Empty() {
		return user.Identity{}, false
	}
	return id, true
}
