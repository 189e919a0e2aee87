package notify

import (
	"context"
	"fmt"
	"sort"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/notification"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

// Inbox - чтение и пометка уведомлений получателя.
type Inbox struct {
	store repository.DocumentStore
}

func NewInbox(store repository.DocumentStore) *Inbox {
	return &Inbox{store: store}
}

func recipientFilter(recipientID string) []repository.Filter {
	return []repository.Filter{repository.Eq("recipientId", recipientID)}
}

// List возвращает неудалённые уведомления, новые первыми.
func (i *Inbox) List(ctx context.Context, recipientID string) ([]notification.Notification, error) {
	docs, err := i.store.QueryCollection(ctx, repository.NotificationsCollection, recipientFilter(recipientID)...)
	if err != nil {
		return nil, fmt.Errorf("получение уведомлений: %w", err)
	}
	return visible(docs), nil
}

func (i *Inbox) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	list, err := i.List(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	return CountUnread(list), nil
}

func CountUnread(list []notification.Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}

func (i *Inbox) MarkRead(ctx context.Context, recipientID, id string) error {
	if err := i.own(ctx, recipientID, id); err != nil {
		return err
	}
	if err := i.store.UpdateDocument(ctx, repository.NotificationPath(id), repository.Fields{"read": true}); err != nil {
		return fmt.Errorf("пометка прочитанным: %w", err)
	}
	return nil
}

// MarkAllRead помечает все непрочитанные одной пакетной записью.
func (i *Inbox) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	docs, err := i.store.QueryCollection(ctx, repository.NotificationsCollection,
		repository.Eq("recipientId", recipientID),
		repository.Eq("read", false),
		repository.Eq("deleted", false))
	if err != nil {
		return 0, fmt.Errorf("получение непрочитанных: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	writes := make([]repository.Write, 0, len(docs))
	for _, doc := range docs {
		writes = append(writes, repository.Write{Path: doc.Path, Fields: repository.Fields{"read": true}})
	}
	if err := i.store.BatchWrite(ctx, writes); err != nil {
		return 0, fmt.Errorf("пометка всех прочитанными: %w", err)
	}
	return len(writes), nil
}

// Delete скрывает уведомление (deleted=true), запись остаётся.
func (i *Inbox) Delete(ctx context.Context, recipientID, id string) error {
	if err := i.own(ctx, recipientID, id); err != nil {
		return err
	}
	if err := i.store.UpdateDocument(ctx, repository.NotificationPath(id), repository.Fields{"deleted": true}); err != nil {
		return fmt.Errorf("удаление уведомления: %w", err)
	}
	return nil
}

// Subscribe отдаёт fn актуальный список при каждом изменении.
func (i *Inbox) Subscribe(ctx context.Context, recipientID string, fn func([]notification.Notification)) (func(), error) {
	return i.store.Subscribe(ctx, repository.NotificationsCollection, recipientFilter(recipientID), func(docs []repository.Document) {
		fn(visible(docs))
	})
}

// own возвращает ErrNotFound и для чужих уведомлений.
func (i *Inbox) own(ctx context.Context, recipientID, id string) error {
	doc, err := i.store.GetDocument(ctx, repository.NotificationPath(id))
	if err != nil {
		return err
	}
	if doc.Fields["recipientId"] != recipientID {
		return repository.ErrNotFound
	}
	return nil
}

func visible(docs []repository.Document) []notification.Notification {
	out := make([]notification.Notification, 0, len(docs))
	for _, doc := range docs {
		var n notification.Notification
		if err := repository.Decode(doc, &n); err != nil {
			logger.Warn("Notification: Не удалось разобрать уведомление", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		if n.Deleted {
			continue
		}
		n.ID = doc.ID
		out = append(out, n)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}
