package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"taskBoard/internal/directory"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/document/inmemory"
	"taskBoard/internal/service"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	pm  = user.Identity{UID: "pm-uid", Email: "pm@x.com"}
	dev = user.Identity{UID: "dev-uid", Email: "dev@x.com"}
	qa  = user.Identity{UID: "qa-uid", Email: "qa@x.com"}
)

// MockNotifier - мок порта уведомлений
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyProjectMemberAdded(ctx context.Context, p project.Project, addedBy, recipientID string) (string, bool, error) {
	args := m.Called(ctx, p, addedBy, recipientID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockNotifier) NotifyTaskCreated(ctx context.Context, p project.Project, t task.Task, createdBy, recipientID string) (string, bool, error) {
	args := m.Called(ctx, p, t, createdBy, recipientID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockNotifier) NotifyTaskStatusChanged(ctx context.Context, p project.Project, t task.Task, changedBy, recipientID string) (string, bool, error) {
	args := m.Called(ctx, p, t, changedBy, recipientID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockNotifier) NotifyTaskDueDate(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error) {
	args := m.Called(ctx, p, t, recipientID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockNotifier) NotifyTaskOverdue(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error) {
	args := m.Called(ctx, p, t, recipientID)
	return args.String(0), args.Bool(1), args.Error(2)
}

// trackingStore считает пакетные записи и умеет их ронять
type trackingStore struct {
	*inmemory.Store
	batches   atomic.Int32
	failBatch atomic.Bool
}

var errStoreDown = errors.New("store unavailable")

func (s *trackingStore) BatchWrite(ctx context.Context, writes []repository.Write) error {
	s.batches.Add(1)
	if s.failBatch.Load() {
		return errStoreDown
	}
	return s.Store.BatchWrite(ctx, writes)
}

// seed создаёт пользователей, проект p1 (владелец pm, участник dev) и задачи T1, T2 в todo
func seed(t *testing.T) (*trackingStore, *directory.Directory) {
	t.Helper()
	ctx := context.Background()
	store := &trackingStore{Store: inmemory.NewStore()}

	for _, u := range []user.Identity{pm, dev, qa} {
		require.NoError(t, store.SetDocument(ctx, repository.UserPath(u.UID), repository.Fields{"uid": u.UID, "email": u.Email}))
	}
	require.NoError(t, store.SetDocument(ctx, repository.ProjectPath("p1"), repository.Fields{
		"title": "Launch", "ownerId": pm.UID, "members": []string{pm.Email, dev.Email},
	}))
	require.NoError(t, store.SetDocument(ctx, repository.TaskPath("p1", "T1"), repository.Fields{
		"title": "T1", "status": "todo", "order": 0, "assignee": dev.Email,
	}))
	require.NoError(t, store.SetDocument(ctx, repository.TaskPath("p1", "T2"), repository.Fields{
		"title": "T2", "status": "todo", "order": 1, "assignee": dev.Email,
	}))
	return store, directory.New(store)
}

func storedTask(t *testing.T, store repository.DocumentStore, id string) task.Task {
	t.Helper()
	doc, err := store.GetDocument(context.Background(), repository.TaskPath("p1", id))
	require.NoError(t, err)
	var tk task.Task
	require.NoError(t, repository.Decode(doc, &tk))
	tk.ID = doc.ID
	return tk
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, service.IsCode(err, code), "expected %s, got %v", code, err)
}
