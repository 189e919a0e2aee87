package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskBoard/internal/app"
	"taskBoard/internal/config"
	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/identity"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "app-test-secret"

var (
	pm  = user.Identity{UID: "pm-uid", Email: "pm@x.com"}
	dev = user.Identity{UID: "dev-uid", Email: "dev@x.com"}
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			ReadTimeout:     5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Auth:       config.AuthConfig{Secret: secret, Issuer: "taskboard", Leeway: time.Minute, TokenTTL: time.Hour},
		Repository: config.RepositoryConfig{Type: "inmemory"},
		Redis:      config.RedisConfig{CacheTTL: time.Minute},
		Scan:       config.ScanConfig{Interval: time.Hour, LeaseTTL: time.Minute, Parallelism: 2},
	}
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.New(cfg).Init(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Shutdown(context.Background())) })
	return a
}

// call выполняет запрос от имени пользователя с выпущенным токеном
func call(t *testing.T, h http.Handler, who user.Identity, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !who.Empty() {
		token, err := identity.NewIssuer(secret, "taskboard").Issue(who, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApp_Health(t *testing.T) {
	a := newApp(t, testConfig())

	rec := call(t, a.Router(), user.Identity{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "task-board")

	rec = call(t, a.Router(), user.Identity{}, http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestApp_BoardFlow проходит путь от создания проекта до уведомления исполнителя
func TestApp_BoardFlow(t *testing.T) {
	a := newApp(t, testConfig())
	h := a.Router()

	// первый запрос заводит профиль dev, иначе его не найти по email
	rec := call(t, h, dev, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, pm, http.MethodPost, "/projects", dto.ProjectRequest{
		Title:   "Launch",
		Members: []string{"dev@x.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p project.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, pm.UID, p.OwnerID)

	rec = call(t, h, pm, http.MethodPost, "/projects/"+p.ID+"/tasks", dto.CreateTaskRequest{
		Title:    "Write docs",
		Assignee: "dev@x.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// dev не может закрыть задачу
	rec = call(t, h, dev, http.MethodPost, "/projects/"+p.ID+"/board/moves", dto.MoveRequest{TaskID: created.ID, Over: "done"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "PERMISSION_DENIED")

	rec = call(t, h, pm, http.MethodPost, "/projects/"+p.ID+"/board/moves", dto.MoveRequest{TaskID: created.ID, Over: "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved dto.MoveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &moved))
	assert.True(t, moved.Moved)
	assert.Equal(t, "todo", moved.From)
	assert.Equal(t, "done", moved.To)

	rec = call(t, h, dev, http.MethodGet, "/projects/"+p.ID+"/board", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b dto.BoardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.Len(t, b.Columns, 3)
	assert.Empty(t, b.Columns[0].Tasks)
	require.Len(t, b.Columns[2].Tasks, 1)
	assert.Equal(t, created.ID, b.Columns[2].Tasks[0].ID)

	assert.Eventually(t, func() bool {
		rec := call(t, h, dev, http.MethodGet, "/notifications", nil)
		var list dto.NotificationsResponse
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &list) != nil {
			return false
		}
		// добавление в проект, новая задача и смена статуса
		return list.Unread == 3
	}, time.Second, 10*time.Millisecond)
}

func TestApp_WithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig()
	cfg.Redis.Addr = mr.Addr()
	a := newApp(t, cfg)

	rec := call(t, a.Router(), pm, http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	a.SetScanInterval(time.Minute)
}

func TestApp_InitFails(t *testing.T) {
	cfg := testConfig()
	cfg.Repository.Type = "cassandra"
	_, err := app.New(cfg).Init(context.Background())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err = app.New(cfg).Init(context.Background())
	assert.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
