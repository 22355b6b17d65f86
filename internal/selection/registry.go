package selection

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry - хранилища выбора по идентификатору сессии UI.
// Неактивные сессии вытесняются по TTL.
type Registry struct {
	mu     sync.Mutex
	stores *expirable.LRU[string, *Store]
}

// NewRegistry создаёт реестр с максимальным числом сессий и TTL.
func NewRegistry(maxSessions int, ttl time.Duration) *Registry {
	return &Registry{
		stores: expirable.NewLRU[string, *Store](maxSessions, nil, ttl),
	}
}

// Get возвращает хранилище сессии, создавая его при первом обращении.
// Обращение продлевает жизнь записи.
func (r *Registry) Get(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores.Get(sessionID); ok {
		r.stores.Add(sessionID, s)
		return s
	}
	s := NewStore()
	r.stores.Add(sessionID, s)
	return s
}

// Len возвращает количество активных сессий.
func (r *Registry) Len() int {
	return r.stores.Len()
}
