package identity

import (
	"sync"

	"taskBoard/internal/models/user"
)

// Session хранит текущего пользователя и оповещает подписчиков о входе и выходе.
type Session struct {
	mtx       sync.RWMutex
	current   *user.Identity
	listeners map[int]func(*user.Identity)
	nextID    int
}

func NewSession() *Session {
	return &Session{listeners: make(map[int]func(*user.Identity))}
}

// Current возвращает nil, если пользователь не вошёл.
func (s *Session) Current() *user.Identity {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

func (s *Session) SignIn(id user.Identity) {
	if id.Empty() {
		s.SignOut()
		return
	}
	s.set(&id)
}

func (s *Session) SignOut() {
	s.set(nil)
}

// OnAuthStateChanged сразу вызывает fn с текущим значением и затем на каждое изменение.
func (s *Session) OnAuthStateChanged(fn func(*user.Identity)) (unsubscribe func()) {
	s.mtx.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.current
	s.mtx.Unlock()

	fn(copyIdentity(current))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mtx.Lock()
			delete(s.listeners, id)
			s.mtx.Unlock()
		})
	}
}

func (s *Session) set(id *user.Identity) {
	s.mtx.Lock()
	if sameIdentity(s.current, id) {
		s.mtx.Unlock()
		return
	}
	s.current = id
	listeners := make([]func(*user.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mtx.Unlock()

	for _, fn := range listeners {
		fn(copyIdentity(id))
	}
}

func sameIdentity(a, b *user.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyIdentity(id *user.Identity) *user.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
