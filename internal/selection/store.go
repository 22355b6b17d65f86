// Пакет selection - выбранный документ сессии UI.
//
// Два состояния: Unselected и Selected(doc).
// Set уведомляет подписчиков синхронно до возврата.
// Reconcile согласует выбор со свежим списком документов:
//   - Unselected + непустой список → выбирается первый документ
//   - выбранный документ есть в списке → без изменений и уведомлений
//   - выбранного документа нет в списке → первый документ или Unselected
//
// Потокобезопасен.
package selection

import (
	"sync"

	"github.com/anismabaziz/paper-mind/internal/domain/model"
)

// State - текущий выбор.
type State struct {
	Document model.Document
	Selected bool
}

// ID возвращает идентификатор выбранного документа ("" - ничего не выбрано).
func (s State) ID() string {
	if !s.Selected {
		return ""
	}
	return s.Document.ID
}

// Store - хранилище выбора одной сессии.
type Store struct {
	mu    sync.RWMutex
	state State

	// notifyMu упорядочивает рассылку уведомлений между конкурентными Set
	notifyMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewStore создаёт хранилище в состоянии Unselected.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// Get возвращает текущий выбор.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set выбирает документ. Документ не проверяется на наличие в библиотеке.
func (s *Store) Set(doc model.Document) {
	s.apply(func(State) (State, bool) {
		return State{Document: doc, Selected: true}, true
	})
}

// Reconcile согласует выбор со списком документов после его получения.
// Возвращает true, если выбор изменился.
func (s *Store) Reconcile(docs []model.Document) bool {
	return s.apply(func(cur State) (State, bool) {
		if cur.Selected && model.IndexByID(docs, cur.Document.ID) >= 0 {
			return cur, false
		}
		if len(docs) == 0 {
			return State{}, cur.Selected
		}
		return State{Document: docs[0], Selected: true}, true
	})
}

// Subscribe регистрирует обработчик изменений выбора. Возвращает функцию отписки.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// apply вычисляет новое состояние и, если оно изменилось, уведомляет подписчиков.
// Обработчики вызываются вне s.mu: они могут читать Get.
func (s *Store) apply(next func(State) (State, bool)) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	state, changed := next(s.state)
	if changed {
		s.state = state
	}
	s.mu.Unlock()

	if !changed {
		return false
	}

	s.subsMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	return true
}
