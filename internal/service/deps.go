package service

import (
	"context"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

// Directory находит uid участника по email.
type Directory interface {
	LookupUID(ctx context.Context, email string) (string, error)
}

func loadProject(ctx context.Context, store repository.DocumentStore, id string) (project.Project, error) {
	if strings.TrimSpace(id) == "" {
		return project.Project{}, NewValidationError("projectId", "пустой id")
	}
	doc, err := store.GetDocument(ctx, repository.ProjectPath(id))
	if err != nil {
		return project.Project{}, notFoundOr(err, "проект", id, "получение проекта")
	}
	var p project.Project
	if err := repository.Decode(doc, &p); err != nil {
		return project.Project{}, err
	}
	p.ID = doc.ID
	return p, nil
}

// notifyByEmail находит получателя и вызывает send. Ошибки только логируются:
// уведомление не должно мешать основному действию.
func notifyByEmail(ctx context.Context, dir Directory, email, kind string, send func(recipientID string) error) {
	uid, err := dir.LookupUID(ctx, email)
	if err != nil {
		logger.Warn("Service: Получатель уведомления не найден",
			zap.String("kind", kind), zap.String("email", email), zap.Error(err))
		return
	}
	if err := send(uid); err != nil {
		logger.Error("Service: Не удалось отправить уведомление", err,
			zap.String("kind", kind), zap.String("recipient_id", uid))
	}
}

func optionalDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := task.ParseDate(raw)
	if err != nil {
		return time.Time{}, NewValidationError(field, "неверный формат даты")
	}
	return t, nil
}
