package handlers

import (
	"net/http"
	"time"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.ListForUser(r.Context(), u)
	if err != nil {
		respondError(w, r, err, "list_projects")
		return
	}

	logger.Info("HTTP_OUT: Проекты получены",
		zap.Int("count", len(projects)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithBody(w, http.StatusOK, dto.ProjectsResponse{Items: projects})
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}

	var request dto.ProjectRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	p, err := h.projects.Create(r.Context(), u, request.Input())
	if err != nil {
		respondError(w, r, err, "create_project")
		return
	}

	logger.Info("HTTP_OUT: Проект создан",
		zap.String("project_id", p.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))
	responseWithBody(w, http.StatusCreated, p)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	p, err := h.projects.Get(r.Context(), u, id)
	if err != nil {
		respondError(w, r, err, "get_project")
		return
	}
	responseWithBody(w, http.StatusOK, p)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	var request dto.ProjectRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	p, err := h.projects.Update(r.Context(), u, id, request.Input())
	if err != nil {
		respondError(w, r, err, "update_project")
		return
	}

	logger.Info("HTTP_OUT: Проект обновлён",
		zap.String("project_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithBody(w, http.StatusOK, p)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), u, id); err != nil {
		respondError(w, r, err, "delete_project")
		return
	}

	logger.Info("HTTP_OUT: Проект удалён",
		zap.String("project_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))
	w.WriteHeader(http.StatusNoContent)
}
