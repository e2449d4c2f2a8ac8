package engine

import (
	"sync"

	"github.com/Sandss8/Fito-bot/pkg/models"
)

// Store держит сессии активных пользователей в памяти.
// Сессия создаётся лениво при первом обращении и живёт до перезапуска.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

type sessionEntry struct {
	mu   sync.Mutex
	sess *models.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*sessionEntry)}
}

// Acquire возвращает сессию пользователя и захватывает её персональный
// замок: сообщения одного пользователя обрабатываются строго по одному,
// разные пользователи друг друга не ждут. Парный вызов — Release.
func (s *Store) Acquire(userID int64) *models.Session {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	if !ok {
		e = &sessionEntry{sess: &models.Session{State: models.StateMenu}}
		s.sessions[userID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	return e.sess
}

// Release отпускает замок сессии после обработки сообщения.
func (s *Store) Release(userID int64) {
	s.mu.Lock()
	e := s.sessions[userID]
	s.mu.Unlock()
	if e != nil {
		e.mu.Unlock()
	}
}
