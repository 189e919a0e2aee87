package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/notification"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("не указан получатель уведомления")

// Port - то, что ядру нужно от уведомлений. Реализуется Dispatcher.
type Port interface {
	NotifyProjectMemberAdded(ctx context.Context, p project.Project, addedBy, recipientID string) (string, bool, error)
	NotifyTaskCreated(ctx context.Context, p project.Project, t task.Task, createdBy, recipientID string) (string, bool, error)
	NotifyTaskStatusChanged(ctx context.Context, p project.Project, t task.Task, changedBy, recipientID string) (string, bool, error)
	NotifyTaskDueDate(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error)
	NotifyTaskOverdue(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error)
}

type Dispatcher struct {
	store repository.DocumentStore
	// проверка дубликатов и вставка не должны пересекаться внутри процесса
	familyMtx sync.Mutex
}

var _ Port = (*Dispatcher)(nil)

func NewDispatcher(store repository.DocumentStore) *Dispatcher {
	return &Dispatcher{store: store}
}

// Notify создаёт ровно одну запись уведомления. Для типов task_due_date и
// task_overdue сначала ищется непрочитанное уведомление по той же задаче;
// если оно есть, создание пропускается и created=false.
func (d *Dispatcher) Notify(ctx context.Context, n notification.Notification) (id string, created bool, err error) {
	if n.RecipientID == "" {
		return "", false, ErrNoRecipient
	}

	if n.Type.DueDateFamily() {
		d.familyMtx.Lock()
		defer d.familyMtx.Unlock()

		existing, err := d.findUnread(ctx, n)
		if err != nil {
			return "", false, err
		}
		if existing != "" {
			logger.Debug("Notification: Дубликат подавлен",
				zap.String("type", string(n.Type)),
				zap.String("recipient_id", n.RecipientID),
				zap.String("existing_id", existing))
			return existing, false, nil
		}
	}

	id, err = d.store.AddDocument(ctx, repository.NotificationsCollection, fieldsOf(n))
	if err != nil {
		return "", false, fmt.Errorf("создание уведомления %s: %w", n.Type, err)
	}
	logger.Info("Notification: Уведомление создано",
		zap.String("id", id),
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID))
	return id, true, nil
}

// findUnread ищет по id задачи, а если он неизвестен - по названию.
func (d *Dispatcher) findUnread(ctx context.Context, n notification.Notification) (string, error) {
	filters := []repository.Filter{
		repository.Eq("recipientId", n.RecipientID),
		repository.Eq("type", string(n.Type)),
		repository.Eq("read", false),
		repository.Eq("deleted", false),
	}
	if n.TaskID != "" {
		filters = append(filters, repository.Eq("taskId", n.TaskID))
	} else {
		filters = append(filters, repository.Eq("taskTitle", n.TaskTitle))
	}

	docs, err := d.store.QueryCollection(ctx, repository.NotificationsCollection, filters...)
	if err != nil {
		return "", fmt.Errorf("поиск дубликатов: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ID, nil
}

func fieldsOf(n notification.Notification) repository.Fields {
	fields := repository.Fields{
		"type":        string(n.Type),
		"title":       n.Title,
		"message":     n.Message,
		"recipientId": n.RecipientID,
		"read":        false,
		"deleted":     false,
		"createdAt":   repository.ServerTimestamp,
	}
	optional := map[string]string{
		"projectId":    n.ProjectID,
		"projectTitle": n.ProjectTitle,
		"taskId":       n.TaskID,
		"taskTitle":    n.TaskTitle,
		"dueDate":      n.DueDate,
		"newStatus":    n.NewStatus,
		"addedBy":      n.AddedBy,
		"createdBy":    n.CreatedBy,
		"changedBy":    n.ChangedBy,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
