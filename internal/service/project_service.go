package service

import (
	"context"
	"fmt"
	"strings"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/permission"
	"taskBoard/internal/repository"

	"go.uber.org/zap"
)

type ProjectInput struct {
	Title       string
	Description string
	StartDate   string
	EndDate     string
	Members     []string
}

func (in ProjectInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return NewValidationError("title", "название не может быть пустым")
	}
	start, err := optionalDate("startDate", in.StartDate)
	if err != nil {
		return err
	}
	end, err := optionalDate("endDate", in.EndDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return NewValidationError("endDate", "дата окончания раньше даты начала")
	}
	return nil
}

type ProjectService struct {
	store     repository.DocumentStore
	directory Directory
	notifier  notify.Port
}

func NewProjectService(store repository.DocumentStore, directory Directory, notifier notify.Port) *ProjectService {
	return &ProjectService{store: store, directory: directory, notifier: notifier}
}

// Create сохраняет проект с actor владельцем и участником и уведомляет остальных участников.
func (s *ProjectService) Create(ctx context.Context, actor user.Identity, in ProjectInput) (project.Project, error) {
	if err := in.validate(); err != nil {
		return project.Project{}, err
	}

	p := project.Project{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		OwnerID:     actor.UID,
		Members:     project.NormalizeMembers(append([]string{actor.Email}, in.Members...)),
	}

	fields, err := repository.Encode(p)
	if err != nil {
		return project.Project{}, err
	}
	id, err := s.store.AddDocument(ctx, repository.ProjectsCollection, fields)
	if err != nil {
		return project.Project{}, fmt.Errorf("создание проекта: %w", err)
	}
	p.ID = id
	logger.Info("Service: Проект создан", zap.String("project_id", id), zap.String("owner_id", actor.UID))

	s.notifyAdded(ctx, actor, p, p.Members)
	return p, nil
}

// Update доступен только владельцу; уведомляются только новые участники.
func (s *ProjectService) Update(ctx context.Context, actor user.Identity, id string, in ProjectInput) (project.Project, error) {
	if err := in.validate(); err != nil {
		return project.Project{}, err
	}
	p, err := loadProject(ctx, s.store, id)
	if err != nil {
		return project.Project{}, err
	}
	if v := permission.CanEditProject(actor, p); !v.Allowed {
		return project.Project{}, NewForbidden(v.Reason)
	}

	old := p.Members
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Members = project.NormalizeMembers(append([]string{actor.Email}, in.Members...))

	fields, err := repository.Encode(p)
	if err != nil {
		return project.Project{}, err
	}
	if err := s.store.SetDocument(ctx, repository.ProjectPath(id), fields); err != nil {
		return project.Project{}, fmt.Errorf("обновление проекта: %w", err)
	}

	s.notifyAdded(ctx, actor, p, p.NewMembers(old))
	return p, nil
}

func (s *ProjectService) notifyAdded(ctx context.Context, actor user.Identity, p project.Project, members []string) {
	for _, email := range members {
		if strings.EqualFold(email, actor.Email) {
			continue
		}
		notifyByEmail(ctx, s.directory, email, "project_member_added", func(uid string) error {
			_, _, err := s.notifier.NotifyProjectMemberAdded(ctx, p, actor.Email, uid)
			return err
		})
	}
}

func (s *ProjectService) Get(ctx context.Context, actor user.Identity, id string) (project.Project, error) {
	p, err := loadProject(ctx, s.store, id)
	if err != nil {
		return project.Project{}, err
	}
	if !p.CanAccess(actor) {
		logger.Info("Service: Нет доступа к проекту", zap.String("project_id", id), zap.String("uid", actor.UID))
		return project.Project{}, NewForbidden("you are not a member of this project")
	}
	return p, nil
}

// ListForUser - проекты, где email пользователя есть в members.
func (s *ProjectService) ListForUser(ctx context.Context, actor user.Identity) ([]project.Project, error) {
	docs, err := s.store.QueryCollection(ctx, repository.ProjectsCollection, repository.ArrayContains("members", actor.Email))
	if err != nil {
		return nil, fmt.Errorf("получение проектов: %w", err)
	}
	projects := make([]project.Project, 0, len(docs))
	for _, doc := range docs {
		var p project.Project
		if err := repository.Decode(doc, &p); err != nil {
			logger.Warn("Service: Не удалось разобрать проект", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		p.ID = doc.ID
		projects = append(projects, p)
	}
	return projects, nil
}

// Delete - только владелец; сначала удаляются задачи, потом сам проект.
func (s *ProjectService) Delete(ctx context.Context, actor user.Identity, id string) error {
	p, err := loadProject(ctx, s.store, id)
	if err != nil {
		return err
	}
	if v := permission.CanDeleteProject(actor, p); !v.Allowed {
		return NewForbidden(v.Reason)
	}

	tasks, err := s.store.QueryCollection(ctx, repository.TasksCollection(id))
	if err != nil {
		return fmt.Errorf("получение задач проекта: %w", err)
	}
	for _, doc := range tasks {
		if err := s.store.DeleteDocument(ctx, doc.Path); err != nil {
			return fmt.Errorf("удаление задачи %s: %w", doc.ID, err)
		}
	}
	if err := s.store.DeleteDocument(ctx, repository.ProjectPath(id)); err != nil {
		return fmt.Errorf("удаление проекта: %w", err)
	}
	logger.Info("Service: Проект удалён", zap.String("project_id", id), zap.Int("tasks", len(tasks)))
	return nil
}
