package service

import (
	"context"
	"errors"
	"fmt"

	"taskBoard/internal/models/notification"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/repository"
)

// ScanLoops держит цикл проверки сроков пользователя, пока открыт поток уведомлений.
type ScanLoops interface {
	Acquire(u user.Identity) (release func())
}

type NotificationService struct {
	inbox *notify.Inbox
	loops ScanLoops
}

func NewNotificationService(inbox *notify.Inbox, loops ScanLoops) *NotificationService {
	return &NotificationService{inbox: inbox, loops: loops}
}

func (s *NotificationService) List(ctx context.Context, actor user.Identity) ([]notification.Notification, int, error) {
	list, err := s.inbox.List(ctx, actor.UID)
	if err != nil {
		return nil, 0, err
	}
	return list, notify.CountUnread(list), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor user.Identity, id string) error {
	if err := s.inbox.MarkRead(ctx, actor.UID, id); err != nil {
		return inboxError(err, id)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor user.Identity) (int, error) {
	return s.inbox.MarkAllRead(ctx, actor.UID)
}

func (s *NotificationService) Delete(ctx context.Context, actor user.Identity, id string) error {
	if err := s.inbox.Delete(ctx, actor.UID, id); err != nil {
		return inboxError(err, id)
	}
	return nil
}

// Stream подписывает fn на список уведомлений и на время подписки
// держит цикл проверки сроков пользователя.
func (s *NotificationService) Stream(ctx context.Context, actor user.Identity, fn func([]notification.Notification)) (stop func(), err error) {
	release := func() {}
	if s.loops != nil {
		release = s.loops.Acquire(actor)
	}
	unsubscribe, err := s.inbox.Subscribe(ctx, actor.UID, fn)
	if err != nil {
		release()
		return nil, fmt.Errorf("подписка на уведомления: %w", err)
	}
	return func() {
		unsubscribe()
		release()
	}, nil
}

func inboxError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidPath) {
		return NewNotFound("уведомление", id)
	}
	return err
}
