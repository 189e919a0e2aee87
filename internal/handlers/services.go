package handlers

import (
	"context"

	"taskBoard/internal/board"
	"taskBoard/internal/models/notification"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
	"taskBoard/internal/service"
)

type ProjectService interface {
	Create(ctx context.Context, actor user.Identity, in service.ProjectInput) (project.Project, error)
	Update(ctx context.Context, actor user.Identity, id string, in service.ProjectInput) (project.Project, error)
	Get(ctx context.Context, actor user.Identity, id string) (project.Project, error)
	ListForUser(ctx context.Context, actor user.Identity) ([]project.Project, error)
	Delete(ctx context.Context, actor user.Identity, id string) error
}

type TaskService interface {
	Create(ctx context.Context, actor user.Identity, projectID string, in service.TaskInput) (task.Task, error)
	Get(ctx context.Context, actor user.Identity, projectID, taskID string) (task.Task, error)
	Update(ctx context.Context, actor user.Identity, projectID, taskID string, opts ...task.TaskOption) (task.Task, error)
	Delete(ctx context.Context, actor user.Identity, projectID, taskID string) error
}

type BoardService interface {
	Board(ctx context.Context, actor user.Identity, projectID string) (board.State, error)
	Watch(ctx context.Context, actor user.Identity, projectID string, fn func(board.State)) (stop func(), err error)
	Move(ctx context.Context, actor user.Identity, projectID string, move board.Move) (service.MoveResult, error)
}

type NotificationService interface {
	List(ctx context.Context, actor user.Identity) ([]notification.Notification, int, error)
	MarkRead(ctx context.Context, actor user.Identity, id string) error
	MarkAllRead(ctx context.Context, actor user.Identity) (int, error)
	Delete(ctx context.Context, actor user.Identity, id string) error
	Stream(ctx context.Context, actor user.Identity, fn func([]notification.Notification)) (stop func(), err error)
}

// HealthChecker - хранилище документов.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
