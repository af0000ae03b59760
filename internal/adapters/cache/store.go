package cache

import (
	"container/list"
	"sync"
	"time"
)

type Freshness int

const (
	Missing Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

type Entry[T any] struct {
	Value    T
	StoredAt time.Time
}

type StoreConfig struct {
	Name     string
	Capacity int
	TTL      time.Duration
	// How long past the TTL an entry may still be served while it is refreshed
	Grace time.Duration
}

type storeItem[T any] struct {
	key   string
	entry Entry[T]
}

// Store is a bounded in-memory store that evicts in insertion order
type Store[T any] struct {
	config  StoreConfig
	nowFunc func() time.Time

	mutex   sync.Mutex
	entries map[string]*list.Element
	// Front is the oldest insertion
	order *list.List
}

func NewStore[T any](config StoreConfig, nowFunc func() time.Time) *Store[T] {
	if config.Capacity < 1 {
		panic("cache store needs a positive capacity")
	}

	return &Store[T]{
		config:  config,
		nowFunc: nowFunc,

		entries: make(map[string]*list.Element, config.Capacity),
		order:   list.New(),
	}
}

func (s *Store[T]) Name() string {
	return s.config.Name
}

func (s *Store[T]) Get(key string) (Entry[T], Freshness) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	element, ok := s.entries[key]
	if !ok {
		return Entry[T]{}, Missing
	}

	item := element.Value.(*storeItem[T])
	age := s.nowFunc().Sub(item.entry.StoredAt)
	switch {
	case age < s.config.TTL:
		return item.entry, Fresh
	case age < s.config.TTL+s.config.Grace:
		return item.entry, Stale
	default:
		s.order.Remove(element)
		delete(s.entries, key)
		return Entry[T]{}, Missing
	}
}

func (s *Store[T]) Set(key string, value T) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if element, ok := s.entries[key]; ok {
		s.order.Remove(element)
	}

	s.entries[key] = s.order.PushBack(&storeItem[T]{
		key: key,
		entry: Entry[T]{
			Value:    value,
			StoredAt: s.nowFunc(),
		},
	})

	if s.order.Len() > s.config.Capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*storeItem[T]).key)
	}
}

func (s *Store[T]) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.order.Len()
}
