package handlers

import (
	"net/http"
	"time"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	if request.Title == "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "title"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "название не может быть пустым")
		return
	}

	logger.Info("HTTP: Вызов сервиса создания задач")
	t, err := h.tasks.Create(r.Context(), u, projectID, request.Input())
	if err != nil {
		respondError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", t.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))
	responseWithBody(w, http.StatusCreated, t)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	taskID, ok := urlParam(w, r, "taskID")
	if !ok {
		return
	}

	t, err := h.tasks.Get(r.Context(), u, projectID, taskID)
	if err != nil {
		respondError(w, r, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", t.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithBody(w, http.StatusOK, t)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	taskID, ok := urlParam(w, r, "taskID")
	if !ok {
		return
	}

	var request dto.UpdateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	logger.Info("HTTP: запрос к сервису обновления данных")
	t, err := h.tasks.Update(r.Context(), u, projectID, taskID, request.Options()...)
	if err != nil {
		respondError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", taskID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithBody(w, http.StatusOK, t)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}
	taskID, ok := urlParam(w, r, "taskID")
	if !ok {
		return
	}

	logger.Info("HTTP: Обращение к сервису для удаления задачи")
	if err := h.tasks.Delete(r.Context(), u, projectID, taskID); err != nil {
		respondError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", taskID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))
	w.WriteHeader(http.StatusNoContent)
}
