package worker

import (
	"context"
	"sync"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/user"

	"go.uber.org/zap"
)

// AuthState - источник смены пользователя (identity.Session).
type AuthState interface {
	OnAuthStateChanged(fn func(*user.Identity)) (unsubscribe func())
}

// Supervisor держит не больше одного цикла проверки на пользователя.
// Цикл живёт, пока его кто-то держит через Acquire.
type Supervisor struct {
	worker *DueDateWorker
	ctx    context.Context
	cancel context.CancelFunc

	mtx   sync.Mutex
	loops map[string]*loop
	wg    sync.WaitGroup
}

type loop struct {
	refs   int
	cancel context.CancelFunc
}

func NewSupervisor(ctx context.Context, worker *DueDateWorker) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		worker: worker,
		ctx:    ctx,
		cancel: cancel,
		loops:  make(map[string]*loop),
	}
}

// Acquire запускает цикл для u при первом обращении. release идемпотентен;
// когда отпущены все держатели, таймер останавливается.
func (s *Supervisor) Acquire(u user.Identity) (release func()) {
	if u.Empty() {
		return func() {}
	}

	s.mtx.Lock()
	l, ok := s.loops[u.UID]
	if !ok {
		if s.ctx.Err() != nil {
			s.mtx.Unlock()
			return func() {}
		}
		ctx, cancel := context.WithCancel(s.ctx)
		l = &loop{cancel: cancel}
		s.loops[u.UID] = l

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker.Start(ctx, u)
		}()
		logger.Info("Worker: Цикл проверки сроков запущен", zap.String("uid", u.UID))
	}
	l.refs++
	s.mtx.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.release(u.UID, l) })
	}
}

func (s *Supervisor) release(uid string, l *loop) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	l.refs--
	if l.refs > 0 {
		return
	}
	l.cancel()
	if s.loops[uid] == l {
		delete(s.loops, uid)
	}
	logger.Info("Worker: Цикл проверки сроков остановлен", zap.String("uid", uid))
}

// Watch держит цикл для текущего пользователя сессии: вход запускает,
// выход или смена пользователя останавливает.
func (s *Supervisor) Watch(auth AuthState) (stop func()) {
	var mtx sync.Mutex
	var release func()

	unsubscribe := auth.OnAuthStateChanged(func(u *user.Identity) {
		mtx.Lock()
		defer mtx.Unlock()
		if release != nil {
			release()
			release = nil
		}
		if u != nil {
			release = s.Acquire(*u)
		}
	})

	return func() {
		unsubscribe()
		mtx.Lock()
		defer mtx.Unlock()
		if release != nil {
			release()
			release = nil
		}
	}
}

func (s *Supervisor) Running(uid string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.loops[uid]
	return ok
}

func (s *Supervisor) Active() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.loops)
}

func (s *Supervisor) SetInterval(d time.Duration) {
	s.worker.SetInterval(d)
}

// Stop останавливает все циклы и ждёт их завершения.
func (s *Supervisor) Stop() {
	s.cancel()
	s.mtx.Lock()
	for uid, l := range s.loops {
		l.cancel()
		delete(s.loops, uid)
	}
	s.mtx.Unlock()
	s.wg.Wait()
	logger.Info("Worker: Все циклы проверки сроков остановлены")
}
