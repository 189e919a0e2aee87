package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/logger"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/permission"
	"taskBoard/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Denial - отказ проверки прав. Это не ошибка: пользователь видит сообщение,
// которое скрывается через DismissAfter.
type Denial struct {
	Message      string
	DismissAfter time.Duration
}

type MoveResult struct {
	State      board.State
	Transition *board.Transition
	Denial     *Denial
	// NoOp: задачу или колонку не удалось определить, ничего не записано.
	NoOp bool
}

type boardEntry struct {
	manager   *board.Manager
	moveMtx   sync.Mutex
	refs      int
	attach    sync.Once
	attachErr error
}

// BoardService держит по одному менеджеру доски на проект, пока доска кому-то нужна.
type BoardService struct {
	store     repository.DocumentStore
	directory Directory
	notifier  notify.Port
	tracer    trace.Tracer

	mtx    sync.Mutex
	boards map[string]*boardEntry
}

func NewBoardService(store repository.DocumentStore, directory Directory, notifier notify.Port) *BoardService {
	return &BoardService{
		store:     store,
		directory: directory,
		notifier:  notifier,
		tracer:    otel.Tracer("taskBoard/internal/service"),
		boards:    make(map[string]*boardEntry),
	}
}

func (s *BoardService) acquire(ctx context.Context, projectID string) (*boardEntry, func(), error) {
	s.mtx.Lock()
	e, ok := s.boards[projectID]
	if !ok {
		e = &boardEntry{manager: board.NewManager(projectID)}
		s.boards[projectID] = e
	}
	e.refs++
	s.mtx.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { s.release(projectID, e) })
	}

	// подписка живёт дольше запроса, который её открыл
	e.attach.Do(func() {
		e.attachErr = e.manager.Attach(context.WithoutCancel(ctx), s.store)
	})
	if e.attachErr != nil {
		release()
		return nil, nil, fmt.Errorf("загрузка доски: %w", e.attachErr)
	}
	return e, release, nil
}

func (s *BoardService) release(projectID string, e *boardEntry) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	if s.boards[projectID] == e {
		delete(s.boards, projectID)
	}
	e.manager.Close()
}

// OpenBoards - число проектов с открытым менеджером.
func (s *BoardService) OpenBoards() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.boards)
}

func (s *BoardService) access(ctx context.Context, actor user.Identity, projectID string) error {
	p, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return err
	}
	if !p.CanAccess(actor) {
		return NewForbidden("you are not a member of this project")
	}
	return nil
}

// Board возвращает текущее подтверждённое состояние доски.
func (s *BoardService) Board(ctx context.Context, actor user.Identity, projectID string) (board.State, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return board.State{}, err
	}
	e, release, err := s.acquire(ctx, projectID)
	if err != nil {
		return board.State{}, err
	}
	defer release()
	return e.manager.Snapshot(), nil
}

// Watch вызывает fn с текущим состоянием и затем на каждое изменение до stop.
func (s *BoardService) Watch(ctx context.Context, actor user.Identity, projectID string, fn func(board.State)) (stop func(), err error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	e, release, err := s.acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cancel := e.manager.Watch(fn)
	return func() {
		cancel()
		release()
	}, nil
}

// Move выполняет одно перетаскивание: план, проверка прав, Begin, одна пакетная
// запись, затем Commit или Rollback. Переносы на одной доске идут по очереди.
func (s *BoardService) Move(ctx context.Context, actor user.Identity, projectID string, move board.Move) (MoveResult, error) {
	ctx, span := s.tracer.Start(ctx, "BoardService.Move", trace.WithAttributes(
		attribute.String("project.id", projectID),
		attribute.String("task.id", move.TaskID),
		attribute.String("move.over", move.Over),
	))
	defer span.End()

	result, err := s.move(ctx, actor, projectID, move)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Bool("move.denied", result.Denial != nil),
		attribute.Bool("move.noop", result.NoOp),
	)
	return result, err
}

func (s *BoardService) move(ctx context.Context, actor user.Identity, projectID string, move board.Move) (MoveResult, error) {
	start := time.Now()
	p, err := loadProject(ctx, s.store, projectID)
	if err != nil {
		return MoveResult{}, err
	}
	if !p.CanAccess(actor) {
		return MoveResult{}, NewForbidden("you are not a member of this project")
	}

	e, release, err := s.acquire(ctx, projectID)
	if err != nil {
		return MoveResult{}, err
	}
	defer release()

	e.moveMtx.Lock()
	defer e.moveMtx.Unlock()

	state := e.manager.Snapshot()
	tr, err := board.Plan(state.Board, move)
	if errors.Is(err, board.ErrUnresolved) {
		logger.Info("Service: Перенос не определён",
			zap.String("project_id", projectID), zap.String("task_id", move.TaskID), zap.String("over", move.Over))
		return MoveResult{State: state, NoOp: true}, nil
	}
	if err != nil {
		return MoveResult{}, err
	}

	original, _ := state.Board.Task(move.TaskID)
	if v := permission.CanTransition(actor, p, original, tr.To); !v.Allowed {
		logger.Info("Service: Перенос запрещён",
			zap.String("project_id", projectID),
			zap.String("task_id", move.TaskID),
			zap.String("uid", actor.UID),
			zap.String("reason", v.Reason))
		return MoveResult{State: state, Denial: &Denial{Message: v.Reason, DismissAfter: DenialDismissAfter}}, nil
	}

	pending, err := e.manager.Begin(tr)
	if err != nil {
		return MoveResult{}, fmt.Errorf("начало переноса: %w", err)
	}

	if err := s.store.BatchWrite(ctx, tr.Writes); err != nil {
		pending.Rollback()
		logger.Error("Service: Не удалось сохранить перенос", err,
			zap.String("project_id", projectID),
			zap.String("task_id", move.TaskID),
			zap.Int("writes", len(tr.Writes)))
		return MoveResult{State: e.manager.Snapshot()}, NewPersistFailed(err)
	}
	pending.Commit()

	logger.Info("Service: Задача перенесена",
		zap.String("project_id", projectID),
		zap.String("task_id", move.TaskID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.Duration("ms", time.Since(start)))

	if tr.CrossColumn && tr.Task.Assignee != "" && !tr.Task.AssignedTo(actor.Email) {
		notifyByEmail(ctx, s.directory, tr.Task.Assignee, "task_status_changed", func(uid string) error {
			_, _, err := s.notifier.NotifyTaskStatusChanged(ctx, p, tr.Task, actor.Email, uid)
			return err
		})
	}

	return MoveResult{State: e.manager.Snapshot(), Transition: &tr}, nil
}
