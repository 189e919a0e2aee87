package service_test

import (
	"context"
	"testing"

	"taskBoard/internal/models/task"
	"taskBoard/internal/permission"
	"taskBoard/internal/repository"
	"taskBoard/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTaskService_Create(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewTaskService(store, dir, notifier)

	notifier.On("NotifyTaskCreated", mock.Anything, mock.Anything, mock.AnythingOfType("task.Task"), pm.Email, dev.UID).
		Return("n1", true, nil).Once()

	created, err := svc.Create(context.Background(), pm, "p1", service.TaskInput{
		Title:    "T3",
		Assignee: dev.Email,
		DueDate:  "2025-04-01",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, task.StatusTodo, created.Status, "status defaults to todo")
	assert.Equal(t, 2, created.Order, "new task goes to the end of the column")

	stored := storedTask(t, store, created.ID)
	assert.Equal(t, "T3", stored.Title)
	assert.Equal(t, "2025-04-01", stored.DueDate)

	notifier.AssertExpectations(t)
}

func TestTaskService_Create_SelfAssigned(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewTaskService(store, dir, notifier)

	created, err := svc.Create(context.Background(), dev, "p1", service.TaskInput{Title: "mine", Status: task.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, dev.Email, created.Assignee)
	assert.Equal(t, 0, created.Order)

	notifier.AssertNotCalled(t, "NotifyTaskCreated")
}

// Адрес исполнителя хранится в нижнем регистре, иначе проверка сроков его не найдёт
func TestTaskService_Create_AssigneeNormalized(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewTaskService(store, dir, notifier)

	notifier.On("NotifyTaskCreated", mock.Anything, mock.Anything, mock.AnythingOfType("task.Task"), pm.Email, dev.UID).
		Return("n1", true, nil).Once()

	created, err := svc.Create(context.Background(), pm, "p1", service.TaskInput{Title: "T3", Assignee: " DEV@x.com "})
	require.NoError(t, err)
	assert.Equal(t, "dev@x.com", storedTask(t, store, created.ID).Assignee)

	updated, err := svc.Update(context.Background(), pm, "p1", created.ID, task.WithAssignee("PM@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "pm@x.com", updated.Assignee)
	assert.Equal(t, "pm@x.com", storedTask(t, store, created.ID).Assignee)
}

func TestTaskService_Create_Errors(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewTaskService(store, dir, new(MockNotifier))

	tests := []struct {
		name       string
		actor      string
		input      service.TaskInput
		expectCode string
	}{
		{name: "empty title", input: service.TaskInput{Title: " "}, expectCode: service.CodeValidation},
		{name: "assignee not a member", input: service.TaskInput{Title: "x", Assignee: qa.Email}, expectCode: service.CodeValidation},
		{name: "unknown status", input: service.TaskInput{Title: "x", Status: "blocked"}, expectCode: service.CodeValidation},
		{name: "bad due date", input: service.TaskInput{Title: "x", DueDate: "soon"}, expectCode: service.CodeValidation},
		{name: "outsider", actor: "qa", input: service.TaskInput{Title: "x"}, expectCode: service.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := pm
			if tt.actor == "qa" {
				actor = qa
			}
			_, err := svc.Create(context.Background(), actor, "p1", tt.input)
			requireCode(t, err, tt.expectCode)
		})
	}
}

func TestTaskService_Update_Fields(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewTaskService(store, dir, notifier)

	updated, err := svc.Update(context.Background(), dev, "p1", "T1",
		task.WithTitle("T1 renamed"),
		task.WithDueDate("2025-05-01"),
		task.WithDueDate("not a date"),
	)
	require.NoError(t, err)
	assert.Equal(t, "T1 renamed", updated.Title)
	assert.Equal(t, "2025-05-01", updated.DueDate, "invalid options are skipped")

	stored := storedTask(t, store, "T1")
	assert.Equal(t, "T1 renamed", stored.Title)
	assert.Equal(t, 0, stored.Order)
	notifier.AssertNotCalled(t, "NotifyTaskStatusChanged")

	_, err = svc.Update(context.Background(), dev, "p1", "T1", task.WithAssignee(qa.Email))
	requireCode(t, err, service.CodeValidation)

	_, err = svc.Update(context.Background(), dev, "p1", "missing", task.WithTitle("x"))
	requireCode(t, err, service.CodeNotFound)
}

// Смена статуса через редактирование подчиняется тем же правам, что и перетаскивание
func TestTaskService_Update_StatusGate(t *testing.T) {
	store, dir := seed(t)
	notifier := new(MockNotifier)
	svc := service.NewTaskService(store, dir, notifier)

	_, err := svc.Update(context.Background(), dev, "p1", "T1", task.WithStatus(task.StatusDone))
	requireCode(t, err, service.CodePermissionDenied)
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, permission.ReasonOwnerOnlyDone, busErr.Message)
	assert.Equal(t, int64(3000), busErr.Details["dismiss_after_ms"])
	assert.Equal(t, task.StatusTodo, storedTask(t, store, "T1").Status)

	notifier.On("NotifyTaskStatusChanged", mock.Anything, mock.Anything, mock.AnythingOfType("task.Task"), pm.Email, dev.UID).
		Return("n1", true, nil).Once()

	updated, err := svc.Update(context.Background(), pm, "p1", "T1", task.WithStatus(task.StatusDone), task.WithTitle("shipped"))
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, updated.Status)
	assert.Equal(t, 0, updated.Order)

	t1 := storedTask(t, store, "T1")
	assert.Equal(t, task.StatusDone, t1.Status)
	assert.Equal(t, "shipped", t1.Title)
	assert.Equal(t, 0, storedTask(t, store, "T2").Order, "source column is reindexed")

	notifier.AssertExpectations(t)
}

func TestTaskService_GetAndDelete(t *testing.T) {
	store, dir := seed(t)
	svc := service.NewTaskService(store, dir, new(MockNotifier))
	ctx := context.Background()

	got, err := svc.Get(ctx, dev, "p1", "T2")
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Title)
	assert.Equal(t, "p1", got.ProjectID)

	_, err = svc.Get(ctx, qa, "p1", "T2")
	requireCode(t, err, service.CodeForbidden)

	require.NoError(t, svc.Delete(ctx, dev, "p1", "T2"))
	_, err = store.GetDocument(ctx, repository.TaskPath("p1", "T2"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = svc.Delete(ctx, dev, "p1", "T2")
	requireCode(t, err, service.CodeNotFound)
}
