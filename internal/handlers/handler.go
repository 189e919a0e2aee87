package handlers

import (
	"net/http"
	"strings"

	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/models/user"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	projects      ProjectService
	tasks         TaskService
	boards        BoardService
	notifications NotificationService
	health        HealthChecker
}

func NewHandler(projects ProjectService, tasks TaskService, boards BoardService, notifications NotificationService, health HealthChecker) *Handler {
	return &Handler{
		projects:      projects,
		tasks:         tasks,
		boards:        boards,
		notifications: notifications,
		health:        health,
	}
}

// Routes регистрирует защищённые маршруты; auth оборачивает всё, кроме /health.
func (h *Handler) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)   // GET /projects
			r.Post("/", h.CreateProject) // POST /projects

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProject)       // GET /projects/{projectID}
				r.Put("/", h.UpdateProject)    // PUT /projects/{projectID}
				r.Delete("/", h.DeleteProject) // DELETE /projects/{projectID}

				r.Post("/tasks", h.CreateTask) // POST /projects/{projectID}/tasks
				r.Route("/tasks/{taskID}", func(r chi.Router) {
					r.Get("/", h.GetTask)       // GET /projects/{projectID}/tasks/{taskID}
					r.Put("/", h.UpdateTask)    // PUT /projects/{projectID}/tasks/{taskID}
					r.Delete("/", h.DeleteTask) // DELETE /projects/{projectID}/tasks/{taskID}
				})

				r.Get("/board", h.GetBoard)           // GET /projects/{projectID}/board
				r.Post("/board/moves", h.MoveTask)    // POST /projects/{projectID}/board/moves
				r.Get("/board/stream", h.StreamBoard) // GET /projects/{projectID}/board/stream
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)                 // GET /notifications
			r.Get("/stream", h.StreamNotifications)         // GET /notifications/stream
			r.Post("/read-all", h.MarkAllNotificationsRead) // POST /notifications/read-all
			r.Post("/{id}/read", h.MarkNotificationRead)    // POST /notifications/{id}/read
			r.Delete("/{id}", h.DeleteNotification)         // DELETE /notifications/{id}
		})
	})
}

// actor достаёт пользователя, положенного middleware.Auth.
func actor(w http.ResponseWriter, r *http.Request) (user.Identity, bool) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		logger.Warn("HTTP: Запрос без пользователя", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnauthorized, "sign in required")
		return user.Identity{}, false
	}
	return id, true
}

func urlParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("param", name),
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, name+" не может быть пустым")
		return "", false
	}
	return value, true
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.health.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: Хранилище недоступно", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", "task-board"))
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", "task-board"))
}
