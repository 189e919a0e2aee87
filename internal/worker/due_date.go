package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/project"
	"taskBoard/internal/models/task"
	"taskBoard/internal/models/user"
	"taskBoard/internal/repository"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 30 * time.Minute
	DueSoonWindow   = 24 * time.Hour
)

// Notifier - часть notify.Port, нужная проверке сроков.
type Notifier interface {
	NotifyTaskDueDate(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error)
	NotifyTaskOverdue(ctx context.Context, p project.Project, t task.Task, recipientID string) (string, bool, error)
}

type Condition int

const (
	ConditionNone Condition = iota
	ConditionDueSoon
	ConditionOverdue
)

func (c Condition) String() string {
	switch c {
	case ConditionDueSoon:
		return "due_soon"
	case ConditionOverdue:
		return "overdue"
	}
	return "none"
}

// Classify: до дедлайна осталось (0, 24ч] - скоро срок; дедлайн прошёл
// и задача не в done - просрочена.
func Classify(t task.Task, now time.Time) Condition {
	due, ok := t.DueAt()
	if !ok {
		return ConditionNone
	}
	remaining := due.Sub(now)
	switch {
	case remaining > 0 && remaining <= DueSoonWindow:
		return ConditionDueSoon
	case remaining < 0 && t.Status != task.StatusDone:
		return ConditionOverdue
	}
	return ConditionNone
}

// Report - итог одного прохода.
type Report struct {
	Projects int
	Tasks    int
	DueSoon  int
	Overdue  int
	Created  int
	Failed   int
}

type DueDateWorker struct {
	store    repository.DocumentStore
	notifier Notifier
	lease    Lease
	leaseTTL time.Duration
	parallel int
	now      func() time.Time

	mtx      sync.Mutex
	interval time.Duration
	changed  chan struct{}
}

type Option func(*DueDateWorker)

func WithClock(now func() time.Time) Option {
	return func(w *DueDateWorker) {
		w.now = now
	}
}

// WithLease: перед каждым проходом берётся аренда, чтобы пользователя
// одновременно проверял только один процесс.
func WithLease(lease Lease, ttl time.Duration) Option {
	return func(w *DueDateWorker) {
		w.lease = lease
		if ttl > 0 {
			w.leaseTTL = ttl
		}
	}
}

func WithParallelism(n int) Option {
	return func(w *DueDateWorker) {
		if n > 0 {
			w.parallel = n
		}
	}
}

func NewDueDateWorker(store repository.DocumentStore, notifier Notifier, interval *time.Duration, opts ...Option) *DueDateWorker {
	intervalToSet := DefaultInterval
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}

	w := &DueDateWorker{
		store:    store,
		notifier: notifier,
		leaseTTL: 2 * time.Minute,
		parallel: 4,
		now:      time.Now,
		interval: intervalToSet,
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *DueDateWorker) Interval() time.Duration {
	d, _ := w.schedule()
	return d
}

// SetInterval меняет период у всех запущенных циклов.
func (w *DueDateWorker) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if d == w.interval {
		return
	}
	w.interval = d
	close(w.changed)
	w.changed = make(chan struct{})
	logger.Info("Worker: Новый период проверки сроков", zap.Duration("interval", d))
}

func (w *DueDateWorker) schedule() (time.Duration, <-chan struct{}) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.interval, w.changed
}

// Start проверяет сразу, затем раз в период, пока не отменён ctx.
func (w *DueDateWorker) Start(ctx context.Context, u user.Identity) {
	logger.Info("Worker: Запуск проверки сроков", zap.String("uid", u.UID))
	w.pass(ctx, u)

	interval, changed := w.schedule()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.pass(ctx, u)
		case <-changed:
			interval, changed = w.schedule()
			ticker.Reset(interval)
		case <-ctx.Done():
			logger.Info("Worker: Проверка сроков останавливается", zap.String("uid", u.UID))
			return
		}
	}
}

// pass - один проход с арендой; ошибки только логируются.
func (w *DueDateWorker) pass(ctx context.Context, u user.Identity) {
	if ctx.Err() != nil {
		return
	}
	if w.lease != nil {
		release, ok, err := w.lease.Acquire(ctx, LeaseKey(u.UID), w.leaseTTL)
		if err != nil {
			logger.Warn("Worker: Не удалось взять аренду", zap.String("uid", u.UID), zap.Error(err))
			return
		}
		if !ok {
			logger.Debug("Worker: Проверку выполняет другой процесс", zap.String("uid", u.UID))
			return
		}
		defer release()
	}

	if _, err := w.Scan(ctx, u); err != nil {
		logger.Warn("Worker: Ошибка проверки сроков", zap.String("uid", u.UID), zap.Error(err))
	}
}

type projectTasks struct {
	project project.Project
	tasks   []task.Task
	err     error
}

// Scan - один полный проход по задачам пользователя.
func (w *DueDateWorker) Scan(ctx context.Context, u user.Identity) (Report, error) {
	start := time.Now()
	var report Report

	email := user.NormalizeEmail(u.Email)
	docs, err := w.store.QueryCollection(ctx, repository.ProjectsCollection, repository.ArrayContains("members", email))
	if err != nil {
		return report, fmt.Errorf("получение проектов: %w", err)
	}

	projects := make([]project.Project, 0, len(docs))
	for _, doc := range docs {
		var p project.Project
		if err := repository.Decode(doc, &p); err != nil {
			logger.Warn("Worker: Не удалось разобрать проект", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		p.ID = doc.ID
		projects = append(projects, p)
	}
	report.Projects = len(projects)

	mapper := iter.Mapper[project.Project, projectTasks]{MaxGoroutines: w.parallel}
	fetched := mapper.Map(projects, func(p *project.Project) projectTasks {
		tasks, err := w.assignedTasks(ctx, p.ID, email)
		return projectTasks{project: *p, tasks: tasks, err: err}
	})

	now := w.now()
	for _, pt := range fetched {
		if pt.err != nil {
			report.Failed++
			logger.Warn("Worker: Ошибка получения задач", zap.String("project_id", pt.project.ID), zap.Error(pt.err))
			continue
		}
		for _, t := range pt.tasks {
			report.Tasks++
			var created bool
			var err error
			switch Classify(t, now) {
			case ConditionDueSoon:
				report.DueSoon++
				_, created, err = w.notifier.NotifyTaskDueDate(ctx, pt.project, t, u.UID)
			case ConditionOverdue:
				report.Overdue++
				_, created, err = w.notifier.NotifyTaskOverdue(ctx, pt.project, t, u.UID)
			default:
				continue
			}
			if err != nil {
				report.Failed++
				logger.Warn("Worker: Не удалось создать уведомление",
					zap.String("task_id", t.ID), zap.Error(err))
				continue
			}
			if created {
				report.Created++
			}
		}
	}

	logger.Info("Worker: Завершение проверки сроков",
		zap.String("uid", u.UID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("projects", report.Projects),
		zap.Int("checked", report.Tasks),
		zap.Int("due_soon", report.DueSoon),
		zap.Int("overdue", report.Overdue),
		zap.Int("created", report.Created))
	return report, nil
}

func (w *DueDateWorker) assignedTasks(ctx context.Context, projectID, email string) ([]task.Task, error) {
	docs, err := w.store.QueryCollection(ctx, repository.TasksCollection(projectID), repository.Eq("assignee", email))
	if err != nil {
		return nil, fmt.Errorf("получение задач проекта %s: %w", projectID, err)
	}
	return board.DecodeTasks(projectID, docs), nil
}
