package handlers

import (
	"net/http"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"
	"taskBoard/internal/service"

	"go.uber.org/zap"
)

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	state, err := h.boards.Board(r.Context(), u, projectID)
	if err != nil {
		respondError(w, r, err, "get_board")
		return
	}
	responseWithBody(w, http.StatusOK, dto.FromState(state))
}

// MoveTask принимает одно перетаскивание. Отказ по правам приходит как 403
// вместе с неизменённой доской.
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
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

	var request dto.MoveRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if request.TaskID == "" || request.Over == "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "taskId/over"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "taskId и over обязательны")
		return
	}

	result, err := h.boards.Move(r.Context(), u, projectID, request.Move())
	if err != nil {
		respondError(w, r, err, "move_task")
		return
	}

	if result.Denial != nil {
		logger.Info("HTTP_OUT: Перенос отклонён",
			zap.String("task_id", request.TaskID),
			zap.Duration("ms", time.Since(start)),
			zap.Int("http_status", http.StatusForbidden))
		responseWithJSON(w, http.StatusForbidden,
			toPayload("error", service.CodePermissionDenied),
			toPayload("message", result.Denial.Message),
			toPayload("dismiss_after_ms", result.Denial.DismissAfter.Milliseconds()),
			toPayload("board", dto.FromState(result.State)))
		return
	}

	logger.Info("HTTP_OUT: Перенос обработан",
		zap.String("task_id", request.TaskID),
		zap.Bool("noop", result.NoOp),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))
	responseWithBody(w, http.StatusOK, dto.FromMoveResult(result))
}

func (h *Handler) StreamBoard(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN: Поток доски")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	projectID, ok := urlParam(w, r, "projectID")
	if !ok {
		return
	}

	updates := newLatest[board.State]()
	stop, err := h.boards.Watch(r.Context(), u, projectID, updates.put)
	if err != nil {
		respondError(w, r, err, "stream_board")
		return
	}
	defer stop()

	stream, err := openStream(w)
	if err != nil {
		logger.Error("HTTP: Не удалось открыть поток", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveStream(r.Context(), stream, "board", updates, func(s board.State) any {
		return dto.FromState(s)
	})
	logger.Info("HTTP_OUT: Поток доски закрыт", zap.String("project_id", projectID))
}
