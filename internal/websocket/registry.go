package websocket

import (
	"sort"
	"sync"
)

// Transport - живое соединение, в которое можно поставить кадр.
type Transport interface {
	SendFrame(v any) error
	Close()
}

// Registry хранит не больше одного соединения на пользователя.
// Все операции атомарны относительно друг друга.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Transport
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]Transport)}
}

// Bind привязывает t к userID. Побеждает последняя привязка;
// предыдущее соединение возвращается вызывающему и не закрывается.
func (r *Registry) Bind(userID int64, t Transport) (Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.conns[userID]
	r.conns[userID] = t
	if ok && prev == t {
		return nil, false
	}
	return prev, ok
}

func (r *Registry) Lookup(userID int64) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.conns[userID]
	return t, ok
}

// Unbind удаляет привязку, только если она всё ещё указывает на t.
// Так закрытие старого соединения не затирает новую привязку.
func (r *Registry) Unbind(userID int64, t Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[userID]; ok && cur == t {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// UserIDs возвращает отсортированный список подключённых пользователей.
func (r *Registry) UserIDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CloseAll закрывает все соединения и очищает реестр. Для остановки сервера.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int64]Transport)
	r.mu.Unlock()

	for _, t := range conns {
		t.Close()
	}
}
