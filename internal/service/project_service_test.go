package service_test

import (
	"context"
	"errors"
	"testing"

	"taskBoard/internal/models/project"
	"taskBoard/internal/repository"
	"taskBoard/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProjectService_Create(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewProjectService(store, dir, notifier)

	notifier.On("NotifyProjectMemberAdded", mock.Anything, mock.AnythingOfType("project.Project"), pm.Email, dev.UID).
		Return("n1", true, nil).Once()

	p, err := svc.Create(context.Background(), pm, service.ProjectInput{
		Title:   "  Release  ",
		Members: []string{"DEV@x.com", "dev@x.com", "", "ghost@x.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Release", p.Title)
	assert.Equal(t, pm.UID, p.OwnerID)
	assert.Equal(t, []string{pm.Email, "dev@x.com", "ghost@x.com"}, p.Members)

	stored, err := svc.Get(context.Background(), pm, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Members, stored.Members)

	// владелец себе не пишет, неизвестный ghost пропускается
	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "NotifyProjectMemberAdded", 1)
}

func TestProjectService_Create_NotifyFailureIsIgnored(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewProjectService(store, dir, notifier)

	notifier.On("NotifyProjectMemberAdded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", false, errors.New("boom"))

	p, err := svc.Create(context.Background(), pm, service.ProjectInput{Title: "Release", Members: []string{dev.Email}})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestProjectService_Create_Validation(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewProjectService(store, dir, new(MockNotifier))

	tests := []struct {
		name  string
		input service.ProjectInput
	}{
		{name: "empty title", input: service.ProjectInput{Title: "   "}},
		{name: "bad start date", input: service.ProjectInput{Title: "x", StartDate: "tomorrow"}},
		{name: "end before start", input: service.ProjectInput{Title: "x", StartDate: "2025-03-10", EndDate: "2025-03-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), pm, tt.input)
			requireCode(t, err, service.CodeValidation)
		})
	}
}

func TestProjectService_Update(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewProjectService(store, dir, notifier)

	notifier.On("NotifyProjectMemberAdded", mock.Anything, mock.Anything, pm.Email, qa.UID).
		Return("n1", true, nil).Once()

	p, err := svc.Update(context.Background(), pm, "p1", service.ProjectInput{
		Title:   "Launch v2",
		Members: []string{dev.Email, qa.Email},
	})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", p.Title)
	assert.Equal(t, []string{pm.Email, dev.Email, qa.Email}, p.Members)

	// уведомляется только новый участник
	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "NotifyProjectMemberAdded", 1)
}

func TestProjectService_Update_OwnerOnly(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewProjectService(store, dir, new(MockNotifier))

	_, err := svc.Update(context.Background(), dev, "p1", service.ProjectInput{Title: "mine now"})
	requireCode(t, err, service.CodeForbidden)

	_, err = svc.Update(context.Background(), pm, "missing", service.ProjectInput{Title: "x"})
	requireCode(t, err, service.CodeNotFound)
}

func TestProjectService_Get(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewProjectService(store, dir, new(MockNotifier))

	tests := []struct {
		name       string
		id         string
		expectCode string
	}{
		{name: "member", id: "p1"},
		{name: "missing", id: "missing", expectCode: service.CodeNotFound},
		{name: "empty id", id: " ", expectCode: service.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Get(context.Background(), dev, tt.id)
			if tt.expectCode != "" {
				requireCode(t, err, tt.expectCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Launch", p.Title)
		})
	}

	_, err := svc.Get(context.Background(), qa, "p1")
	requireCode(t, err, service.CodeForbidden)
}

func TestProjectService_ListForUser(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewProjectService(store, dir, new(MockNotifier))
	require.NoError(t, store.SetDocument(context.Background(), repository.ProjectPath("p2"), repository.Fields{
		"title": "Other", "ownerId": qa.UID, "members": []string{qa.Email},
	}))

	projects, err := svc.ListForUser(context.Background(), dev)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].ID)

	projects, err = svc.ListForUser(context.Background(), qa)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, []project.Project{{ID: "p2", Title: "Other", OwnerID: qa.UID, Members: []string{qa.Email}}}, projects)
}

func TestProjectService_Delete(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewProjectService(store, dir, new(MockNotifier))
	ctx := context.Background()

	err := svc.Delete(ctx, dev, "p1")
	requireCode(t, err, service.CodeForbidden)

	require.NoError(t, svc.Delete(ctx, pm, "p1"))

	_, err = store.GetDocument(ctx, repository.ProjectPath("p1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	tasks, err := store.QueryCollection(ctx, repository.TasksCollection("p1"))
	require.NoError(t, err)
	assert.Empty(t, tasks, "tasks are deleted with the project")

	err = svc.Delete(ctx, pm, "p1")
	requireCode(t, err, service.CodeNotFound)
}
