package memo

import (
	"container/list"
	"time"
)

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// store is an insertion-ordered map bounded by maxSize. It is not safe for
// concurrent use; owners guard it with their own mutex.
type store[V any] struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	order *list.List // front = earliest inserted
	items map[string]*list.Element
}

func newStore[V any](maxSize int, ttl time.Duration, now func() time.Time) *store[V] {
	return &store[V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     now,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

func (s *store[V]) expired(e *entry[V]) bool {
	return s.ttl > 0 && s.now().Sub(e.storedAt) > s.ttl
}

// get returns the live value for key. Expired entries are removed.
func (s *store[V]) get(key string) (V, bool) {
	var zero V
	el, ok := s.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if s.expired(e) {
		s.remove(el)
		return zero, false
	}
	return e.value, true
}

// set stores value under key. An existing key keeps its queue position.
func (s *store[V]) set(key string, value V) {
	var storedAt time.Time
	if s.ttl > 0 {
		storedAt = s.now()
	}
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.storedAt = storedAt
		return
	}
	for s.order.Len() >= s.maxSize {
		s.remove(s.order.Front())
	}
	s.items[key] = s.order.PushBack(&entry[V]{key: key, value: value, storedAt: storedAt})
}

func (s *store[V]) has(key string) bool {
	_, ok := s.get(key)
	return ok
}

func (s *store[V]) delete(key string) bool {
	el, ok := s.items[key]
	if !ok {
		return false
	}
	live := !s.expired(el.Value.(*entry[V]))
	s.remove(el)
	return live
}

func (s *store[V]) remove(el *list.Element) {
	e := s.order.Remove(el).(*entry[V])
	delete(s.items, e.key)
}

func (s *store[V]) clear() {
	s.order.Init()
	s.items = make(map[string]*list.Element)
}

func (s *store[V]) len() int {
	return s.order.Len()
}

// keys returns resident keys from earliest to latest inserted.
func (s *store[V]) keys() []string {
	out := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[V]).key)
	}
	return out
}
