package handlers

import (
	"net/http"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/notification"
	"taskBoard/internal/notify"

	"go.uber.org/zap"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}

	list, unread, err := h.notifications.List(r.Context(), u)
	if err != nil {
		respondError(w, r, err, "list_notifications")
		return
	}
	responseWithBody(w, http.StatusOK, dto.NotificationsResponse{Items: list, Unread: unread})
}

// StreamNotifications держит цикл проверки сроков пользователя, пока клиент подключён.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN: Поток уведомлений")
	u, ok := actor(w, r)
	if !ok {
		return
	}

	updates := newLatest[[]notification.Notification]()
	stop, err := h.notifications.Stream(r.Context(), u, updates.put)
	if err != nil {
		respondError(w, r, err, "stream_notifications")
		return
	}
	defer stop()

	stream, err := openStream(w)
	if err != nil {
		logger.Error("HTTP: Не удалось открыть поток", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveStream(r.Context(), stream, "notifications", updates, func(list []notification.Notification) any {
		return dto.NotificationsResponse{Items: list, Unread: notify.CountUnread(list)}
	})
	logger.Info("HTTP_OUT: Поток уведомлений закрыт", zap.String("uid", u.UID))
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := urlParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), u, id); err != nil {
		respondError(w, r, err, "mark_notification_read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllRead(r.Context(), u)
	if err != nil {
		respondError(w, r, err, "mark_all_notifications_read")
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("updated", n))
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")
	u, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := urlParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifications.Delete(r.Context(), u, id); err != nil {
		respondError(w, r, err, "delete_notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
