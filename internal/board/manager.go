package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"
)

var (
	ErrClosed      = errors.New("доска закрыта")
	ErrBusy        = errors.New("предыдущий перенос ещё не завершён")
	ErrNotAttached = errors.New("доска не загружена")
)

// State - то, что видит потребитель. Board всегда последняя подтверждённая доска,
// незавершённый перенос виден только через Pending.
type State struct {
	Board   Board
	Pending bool
	Version uint64
}

// Manager владеет доской одного проекта.
type Manager struct {
	projectID string

	mtx       sync.Mutex
	committed Board
	loaded    bool
	snapshots uint64 // число снимков из хранилища, принятых Replace
	pending   *Pending
	version   uint64
	watchers  map[int]*watcher
	nextID    int

	deliver sync.Mutex

	alive       atomic.Bool
	unsubscribe func()
}

func NewManager(projectID string) *Manager {
	m := &Manager{
		projectID: projectID,
		committed: empty(projectID),
		watchers:  make(map[int]*watcher),
	}
	m.alive.Store(true)
	return m
}

func (m *Manager) ProjectID() string {
	return m.projectID
}

func (m *Manager) Alive() bool {
	return m.alive.Load()
}

func (m *Manager) Snapshot() State {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.stateLocked()
}

// Loaded: хотя бы один снимок из хранилища уже получен.
func (m *Manager) Loaded() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.loaded
}

func (m *Manager) stateLocked() State {
	return State{Board: m.committed, Pending: m.pending != nil, Version: m.version}
}

// Replace заменяет доску снимком из хранилища одним шагом.
func (m *Manager) Replace(tasks []task.Task) {
	if !m.alive.Load() {
		return
	}
	b := Build(m.projectID, tasks)

	m.mtx.Lock()
	m.committed = b
	m.loaded = true
	m.snapshots++
	m.version++
	m.mtx.Unlock()

	m.notify()
}

// Begin открывает перенос. Одновременно может быть только один незавершённый
// перенос, и доска должна быть уже загружена из хранилища.
func (m *Manager) Begin(t Transition) (*Pending, error) {
	if !m.alive.Load() {
		return nil, ErrClosed
	}
	m.mtx.Lock()
	if !m.loaded {
		m.mtx.Unlock()
		return nil, ErrNotAttached
	}
	if m.pending != nil {
		m.mtx.Unlock()
		return nil, ErrBusy
	}
	p := &Pending{manager: m, transition: t, base: m.snapshots}
	m.pending = p
	m.version++
	m.mtx.Unlock()

	m.notify()
	return p, nil
}

// Pending - перенос между Begin и Commit/Rollback.
type Pending struct {
	manager    *Manager
	transition Transition
	base       uint64 // snapshots на момент Begin
	done       atomic.Bool
}

func (p *Pending) Transition() Transition {
	return p.transition
}

// Commit делает доску переноса подтверждённой. Если после Begin пришёл снимок
// из хранилища, остаётся он: он новее доски, на которой строился перенос.
func (p *Pending) Commit() {
	p.finish(true)
}

// Rollback возвращает потребителя к последней подтверждённой доске.
func (p *Pending) Rollback() {
	p.finish(false)
}

func (p *Pending) finish(commit bool) {
	if !p.done.CompareAndSwap(false, true) {
		return
	}
	m := p.manager
	if !m.alive.Load() {
		return
	}

	m.mtx.Lock()
	if m.pending != p {
		m.mtx.Unlock()
		return
	}
	m.pending = nil
	if commit && m.snapshots == p.base {
		m.committed = p.transition.Board
	}
	m.version++
	m.mtx.Unlock()

	m.notify()
}

type watcher struct {
	fn   func(State)
	seen uint64
}

// Watch сразу отдаёт fn текущее состояние, затем каждое изменение.
// Каждый наблюдатель видит версии строго по возрастанию.
func (m *Manager) Watch(fn func(State)) (cancel func()) {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mtx.Lock()
	id := m.nextID
	m.nextID++
	state := m.stateLocked()
	m.watchers[id] = &watcher{fn: fn, seen: state.Version}
	m.mtx.Unlock()

	if m.alive.Load() {
		fn(state)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mtx.Lock()
			delete(m.watchers, id)
			m.mtx.Unlock()
		})
	}
}

func (m *Manager) notify() {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mtx.Lock()
	state := m.stateLocked()
	watchers := make([]*watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mtx.Unlock()

	if !m.alive.Load() {
		return
	}
	for _, w := range watchers {
		// более свежая версия уже доставлена
		if state.Version <= w.seen {
			continue
		}
		w.seen = state.Version
		w.fn(state)
	}
}

// Attach подписывает менеджер на коллекцию задач проекта.
func (m *Manager) Attach(ctx context.Context, store repository.DocumentStore) error {
	if !m.alive.Load() {
		return ErrClosed
	}
	unsubscribe, err := store.Subscribe(ctx, repository.TasksCollection(m.projectID), nil, func(docs []repository.Document) {
		if !m.alive.Load() {
			return
		}
		tasks := DecodeTasks(m.projectID, docs)
		m.Replace(tasks)
	})
	if err != nil {
		return fmt.Errorf("подписка на задачи проекта %s: %w", m.projectID, err)
	}

	m.mtx.Lock()
	m.unsubscribe = unsubscribe
	m.mtx.Unlock()

	// Close мог случиться во время подписки
	if !m.alive.Load() {
		unsubscribe()
	}
	return nil
}

// Close снимает флаг жизни и отписывается от хранилища.
// После Close ни одно асинхронное продолжение не меняет состояние.
func (m *Manager) Close() {
	if !m.alive.CompareAndSwap(true, false) {
		return
	}
	m.mtx.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.watchers = make(map[int]*watcher)
	m.mtx.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
