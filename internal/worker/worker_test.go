package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"taskBoard/internal/identity"
	"taskBoard/internal/models/notification"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/document/inmemory"
	"taskBoard/internal/worker"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dev = user.Identity{UID: "dev-uid", Email: "dev@x.com"}
)

func at(d time.Duration) string {
	return now.Add(d).Format(time.RFC3339)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		task   task.Task
		expect worker.Condition
	}{
		{name: "no due date", task: task.Task{Status: task.StatusTodo}, expect: worker.ConditionNone},
		{name: "unparsable due date", task: task.Task{DueDate: "soon"}, expect: worker.ConditionNone},
		{name: "24h and 1s ahead", task: task.Task{DueDate: at(24*time.Hour + time.Second)}, expect: worker.ConditionNone},
		{name: "exactly 24h ahead", task: task.Task{DueDate: at(24 * time.Hour)}, expect: worker.ConditionDueSoon},
		{name: "23h ahead", task: task.Task{DueDate: at(23 * time.Hour)}, expect: worker.ConditionDueSoon},
		{name: "1s ahead", task: task.Task{DueDate: at(time.Second)}, expect: worker.ConditionDueSoon},
		{name: "due right now", task: task.Task{DueDate: at(0)}, expect: worker.ConditionNone},
		{name: "2h overdue", task: task.Task{Status: task.StatusTodo, DueDate: at(-2 * time.Hour)}, expect: worker.ConditionOverdue},
		{name: "overdue in progress", task: task.Task{Status: task.StatusInProgress, DueDate: at(-time.Minute)}, expect: worker.ConditionOverdue},
		{name: "overdue but done", task: task.Task{Status: task.StatusDone, DueDate: at(-2 * time.Hour)}, expect: worker.ConditionNone},
		{name: "due soon even when done", task: task.Task{Status: task.StatusDone, DueDate: at(time.Hour)}, expect: worker.ConditionDueSoon},
		{name: "date only is UTC midnight", task: task.Task{Status: task.StatusTodo, DueDate: "2025-06-02"}, expect: worker.ConditionDueSoon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, worker.Classify(tt.task, now))
		})
	}
}

type fixture struct {
	store  *inmemory.Store
	inbox  *notify.Inbox
	worker *worker.DueDateWorker
}

func newFixture(t *testing.T, opts ...worker.Option) fixture {
	t.Helper()
	ctx := context.Background()
	store := inmemory.NewStore()

	require.NoError(t, store.SetDocument(ctx, repository.ProjectPath("p1"), repository.Fields{
		"title": "Launch", "ownerId": "pm-uid", "members": []string{"pm@x.com", "dev@x.com"},
	}))
	require.NoError(t, store.SetDocument(ctx, repository.ProjectPath("p2"), repository.Fields{
		"title": "Other", "ownerId": "pm-uid", "members": []string{"pm@x.com"},
	}))

	opts = append([]worker.Option{worker.WithClock(func() time.Time { return now })}, opts...)
	w := worker.NewDueDateWorker(store, notify.NewDispatcher(store), nil, opts...)
	return fixture{store: store, inbox: notify.NewInbox(store), worker: w}
}

func (f fixture) addTask(t *testing.T, projectID, id string, fields repository.Fields) {
	t.Helper()
	require.NoError(t, f.store.SetDocument(context.Background(), repository.TaskPath(projectID, id), fields))
}

func (f fixture) notifications(t *testing.T, typ notification.Type) []notification.Notification {
	t.Helper()
	list, err := f.inbox.List(context.Background(), dev.UID)
	require.NoError(t, err)
	var out []notification.Notification
	for _, n := range list {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// TestScan_OverdueOnce: просроченная задача даёт одно уведомление, повторный проход - ни одного
func TestScan_OverdueOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTask(t, "p1", "t1", repository.Fields{
		"title": "Fix bug", "status": "todo", "assignee": "dev@x.com", "dueDate": at(-2 * time.Hour),
	})

	report, err := f.worker.Scan(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overdue)
	assert.Equal(t, 1, report.Created)

	report, err = f.worker.Scan(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overdue)
	assert.Zero(t, report.Created)

	overdue := f.notifications(t, notification.TypeTaskOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, "t1", overdue[0].TaskID)
	assert.Equal(t, "Fix bug", overdue[0].TaskTitle)
	assert.Equal(t, "Launch", overdue[0].ProjectTitle)
}

// Регистр адреса в токене не влияет на то, какие задачи найдёт проход
func TestScan_MixedCaseIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTask(t, "p1", "t1", repository.Fields{
		"title": "Fix bug", "status": "todo", "assignee": "dev@x.com", "dueDate": at(-2 * time.Hour),
	})

	report, err := f.worker.Scan(ctx, user.Identity{UID: dev.UID, Email: " DEV@X.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Projects)
	assert.Equal(t, 1, report.Overdue)
	assert.Len(t, f.notifications(t, notification.TypeTaskOverdue), 1)
}

func TestScan_DueSoonDeduplicated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTask(t, "p1", "t1", repository.Fields{
		"title": "Release", "status": "inprogress", "assignee": "dev@x.com", "dueDate": at(23 * time.Hour),
	})

	for i := 0; i < 2; i++ {
		_, err := f.worker.Scan(ctx, dev)
		require.NoError(t, err)
	}
	assert.Len(t, f.notifications(t, notification.TypeTaskDueDate), 1)
}

func TestScan_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTask(t, "p1", "mine-done", repository.Fields{
		"title": "Done late", "status": "done", "assignee": "dev@x.com", "dueDate": at(-2 * time.Hour),
	})
	f.addTask(t, "p1", "mine-far", repository.Fields{
		"title": "Far away", "status": "todo", "assignee": "dev@x.com", "dueDate": at(48 * time.Hour),
	})
	f.addTask(t, "p1", "mine-nodate", repository.Fields{
		"title": "Someday", "status": "todo", "assignee": "dev@x.com",
	})
	f.addTask(t, "p1", "theirs", repository.Fields{
		"title": "Not mine", "status": "todo", "assignee": "pm@x.com", "dueDate": at(-2 * time.Hour),
	})
	// проект, где dev не участник
	f.addTask(t, "p2", "foreign", repository.Fields{
		"title": "Foreign", "status": "todo", "assignee": "dev@x.com", "dueDate": at(-2 * time.Hour),
	})

	report, err := f.worker.Scan(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Projects)
	assert.Equal(t, 3, report.Tasks)
	assert.Zero(t, report.Created)
	assert.Empty(t, f.notifications(t, notification.TypeTaskOverdue))
}

// countingStore считает запросы проектов, то есть проходы проверки
type countingStore struct {
	*inmemory.Store
	passes atomic.Int32
}

func (s *countingStore) QueryCollection(ctx context.Context, collection string, filters ...repository.Filter) ([]repository.Document, error) {
	if collection == repository.ProjectsCollection {
		s.passes.Add(1)
	}
	return s.Store.QueryCollection(ctx, collection, filters...)
}

func newCountingWorker(interval time.Duration, opts ...worker.Option) (*worker.DueDateWorker, *countingStore) {
	store := &countingStore{Store: inmemory.NewStore()}
	return worker.NewDueDateWorker(store, notify.NewDispatcher(store), &interval, opts...), store
}

func TestStart_ImmediateThenPeriodic(t *testing.T) {
	w, store := newCountingWorker(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx, dev)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.passes.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	stopped := store.passes.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, store.passes.Load(), "no scans after the loop is cancelled")
}

func TestStart_SetInterval(t *testing.T) {
	w, store := newCountingWorker(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx, dev)

	assert.Eventually(t, func() bool { return store.passes.Load() == 1 }, time.Second, 5*time.Millisecond)

	w.SetInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, w.Interval())
	assert.Eventually(t, func() bool { return store.passes.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_RefCounting(t *testing.T) {
	w, store := newCountingWorker(time.Hour)
	s := worker.NewSupervisor(context.Background(), w)
	defer s.Stop()

	first := s.Acquire(dev)
	second := s.Acquire(dev)
	assert.True(t, s.Running(dev.UID))
	assert.Equal(t, 1, s.Active(), "one loop per user")
	assert.Eventually(t, func() bool { return store.passes.Load() == 1 }, time.Second, 5*time.Millisecond)

	first()
	first()
	assert.True(t, s.Running(dev.UID), "still held by the second holder")

	second()
	assert.False(t, s.Running(dev.UID))

	release := s.Acquire(user.Identity{})
	release()
	assert.Zero(t, s.Active(), "anonymous users never get a loop")
}

func TestSupervisor_WatchSession(t *testing.T) {
	w, _ := newCountingWorker(time.Hour)
	s := worker.NewSupervisor(context.Background(), w)
	defer s.Stop()

	session := identity.NewSession()
	stop := s.Watch(session)

	assert.Zero(t, s.Active())

	session.SignIn(dev)
	assert.True(t, s.Running(dev.UID))

	pm := user.Identity{UID: "pm-uid", Email: "pm@x.com"}
	session.SignIn(pm)
	assert.False(t, s.Running(dev.UID))
	assert.True(t, s.Running(pm.UID))

	session.SignOut()
	assert.Zero(t, s.Active())

	session.SignIn(dev)
	stop()
	assert.Zero(t, s.Active(), "stopping the watch releases the loop")
}

func TestSupervisor_Stop(t *testing.T) {
	w, _ := newCountingWorker(time.Hour)
	s := worker.NewSupervisor(context.Background(), w)

	s.Acquire(dev)
	s.Stop()
	assert.Zero(t, s.Active())

	release := s.Acquire(dev)
	defer release()
	assert.False(t, s.Running(dev.UID), "stopped supervisor starts nothing")
}

func TestLocalLease(t *testing.T) {
	ctx := context.Background()
	lease := worker.NewLocalLease()

	release, ok, err := lease.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lease.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	_, ok, err = lease.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	lease := worker.NewRedisLease(client)
	key := worker.LeaseKey(dev.UID)

	release, ok, err := lease.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(key))

	_, ok, err = lease.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists(key))

	// истёкшая аренда не снимает чужую
	stale, ok, err := lease.Acquire(ctx, key, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)
	_, ok, err = lease.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	stale()
	assert.True(t, mr.Exists(key))
}

func TestScan_SkippedWhileLeaseHeld(t *testing.T) {
	lease := worker.NewLocalLease()
	w, store := newCountingWorker(time.Hour, worker.WithLease(lease, time.Minute))

	release, ok, err := lease.Acquire(context.Background(), worker.LeaseKey(dev.UID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, dev)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, store.passes.Load(), "another holder is scanning this user")
}
