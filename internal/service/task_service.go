package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/permission"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

type TaskInput struct {
	Title       string
	Description string
	Status      task.Status
	Assignee    string
	StartDate   string
	DueDate     string
}

type TaskService struct {
	store     repository.DocumentStore
	directory Directory
	notifier  notify.Port
}

func NewTaskService(store repository.DocumentStore, directory Directory, notifier notify.Port) *TaskService {
	return &TaskService{store: store, directory: directory, notifier: notifier}
}

// memberProject загружает проект и проверяет, что actor может менять его задачи.
func (s *TaskService) memberProject(ctx context.Context, actor user.Identity, projectID string) (project.Project, error) {
	p, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return project.Project{}, err
	}
	if v := permission.CanEditTask(actor, p); !v.Allowed {
		return project.Project{}, NewForbidden(v.Reason)
	}
	return p, nil
}

// Create ставит задачу в конец колонки; исполнитель должен быть участником проекта.
func (s *TaskService) Create(ctx context.Context, actor user.Identity, projectID string, in TaskInput) (task.Task, error) {
	p, err := s.memberProject(ctx, actor, projectID)
	if err != nil {
		return task.Task{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return task.Task{}, NewValidationError("title", "название не может быть пустым")
	}
	assignee := user.NormalizeEmail(in.Assignee)
	if assignee == "" {
		assignee = user.NormalizeEmail(actor.Email)
	}
	if !p.HasMember(assignee) && !strings.EqualFold(assignee, actor.Email) {
		return task.Task{}, NewValidationError("assignee", "исполнитель должен быть участником проекта")
	}
	status := in.Status
	if status == "" {
		status = task.StatusTodo
	}
	if !status.Valid() {
		return task.Task{}, NewValidationError("status", "неизвестный статус")
	}
	if _, err := optionalDate("startDate", in.StartDate); err != nil {
		return task.Task{}, err
	}
	if _, err := optionalDate("dueDate", in.DueDate); err != nil {
		return task.Task{}, err
	}

	order, err := s.columnTail(ctx, projectID, status)
	if err != nil {
		return task.Task{}, err
	}

	t := task.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Order:       order,
		Assignee:    assignee,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
	}
	fields, err := repository.Encode(t)
	if err != nil {
		return task.Task{}, err
	}
	id, err := s.store.AddDocument(ctx, repository.TasksCollection(projectID), fields)
	if err != nil {
		return task.Task{}, fmt.Errorf("создание задачи: %w", err)
	}
	t.ID = id
	logger.Info("Service: Задача создана", zap.String("project_id", projectID), zap.String("task_id", id))

	if !t.AssignedTo(actor.Email) {
		notifyByEmail(ctx, s.directory, t.Assignee, "task_created", func(uid string) error {
			_, _, err := s.notifier.NotifyTaskCreated(ctx, p, t, actor.Email, uid)
			return err
		})
	}
	return t, nil
}

func (s *TaskService) columnTail(ctx context.Context, projectID string, status task.Status) (int, error) {
	docs, err := s.store.QueryCollection(ctx, repository.TasksCollection(projectID), repository.Eq("status", string(status)))
	if err != nil {
		return 0, fmt.Errorf("получение колонки %s: %w", status, err)
	}
	return len(docs), nil
}

func (s *TaskService) Get(ctx context.Context, actor user.Identity, projectID, taskID string) (task.Task, error) {
	p, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return task.Task{}, err
	}
	if !p.CanAccess(actor) {
		return task.Task{}, NewForbidden("you are not a member of this project")
	}
	return s.load(ctx, projectID, taskID)
}

func (s *TaskService) load(ctx context.Context, projectID, taskID string) (task.Task, error) {
	doc, err := s.store.GetDocument(ctx, repository.TaskPath(projectID, taskID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", taskID))
		}
		return task.Task{}, notFoundOr(err, "задача", taskID, "получение задачи")
	}
	var t task.Task
	if err := repository.Decode(doc, &t); err != nil {
		return task.Task{}, err
	}
	t.ID = doc.ID
	t.ProjectID = projectID
	return t, nil
}

// Update применяет опции. Смена статуса проходит ту же проверку прав,
// что и перетаскивание, и ставит задачу в конец новой колонки.
func (s *TaskService) Update(ctx context.Context, actor user.Identity, projectID, taskID string, opts ...task.TaskOption) (task.Task, error) {
	p, err := s.memberProject(ctx, actor, projectID)
	if err != nil {
		return task.Task{}, err
	}
	t, err := s.load(ctx, projectID, taskID)
	if err != nil {
		return task.Task{}, err
	}

	before := t
	t.Apply(opts...)

	if t.Assignee != before.Assignee && !p.HasMember(t.Assignee) {
		return task.Task{}, NewValidationError("assignee", "исполнитель должен быть участником проекта")
	}
	fields, err := repository.Encode(t)
	if err != nil {
		return task.Task{}, err
	}

	statusChanged := t.Status != before.Status
	if statusChanged {
		if v := permission.CanTransition(actor, p, before, t.Status); !v.Allowed {
			return task.Task{}, NewPermissionDenied(v.Reason)
		}
		if t, err = s.moveToColumn(ctx, projectID, t, fields); err != nil {
			return task.Task{}, err
		}
	} else if err := s.store.UpdateDocument(ctx, repository.TaskPath(projectID, taskID), fields); err != nil {
		return task.Task{}, notFoundOr(err, "задача", taskID, "обновление задачи")
	}

	if statusChanged && t.Assignee != "" && !t.AssignedTo(actor.Email) {
		notifyByEmail(ctx, s.directory, t.Assignee, "task_status_changed", func(uid string) error {
			_, _, err := s.notifier.NotifyTaskStatusChanged(ctx, p, t, actor.Email, uid)
			return err
		})
	}
	return t, nil
}

// moveToColumn переносит задачу в конец новой колонки так же, как перетаскивание:
// порядок обеих колонок пересчитывается и пишется одной пачкой вместе с правками.
func (s *TaskService) moveToColumn(ctx context.Context, projectID string, t task.Task, fields repository.Fields) (task.Task, error) {
	docs, err := s.store.QueryCollection(ctx, repository.TasksCollection(projectID))
	if err != nil {
		return task.Task{}, fmt.Errorf("получение задач проекта: %w", err)
	}
	tr, err := board.Plan(board.Build(projectID, board.DecodeTasks(projectID, docs)), board.Move{TaskID: t.ID, Over: string(t.Status)})
	if err != nil {
		return task.Task{}, NewNotFound("задача", t.ID)
	}

	path := repository.TaskPath(projectID, t.ID)
	for i, w := range tr.Writes {
		if w.Path != path {
			continue
		}
		for k, v := range fields {
			tr.Writes[i].Fields[k] = v
		}
		tr.Writes[i].Fields["order"] = tr.Task.Order
	}
	if err := s.store.BatchWrite(ctx, tr.Writes); err != nil {
		return task.Task{}, notFoundOr(err, "задача", t.ID, "перенос задачи")
	}
	t.Order = tr.Task.Order
	return t, nil
}

// Delete доступен любому участнику проекта.
func (s *TaskService) Delete(ctx context.Context, actor user.Identity, projectID, taskID string) error {
	if _, err := s.memberProject(ctx, actor, projectID); err != nil {
		return err
	}
	if _, err := s.load(ctx, projectID, taskID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, repository.TaskPath(projectID, taskID)); err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	logger.Info("Service: Задача удалена", zap.String("project_id", projectID), zap.String("task_id", taskID))
	return nil
}
