package inflect

import (
	"container/list"
	"sync"
)

// DefaultMemoSize bounds each memo of an Inflector.
const DefaultMemoSize = 4096

// memo is a bounded LRU of conversion results. Inputs come from request
// paths, so the least recently used results are evicted once it is full.
type memo struct {
	mu      sync.Mutex
	size    int
	entries map[string]*list.Element
	lru     *list.List // front is the most recently used
}

type memoEntry struct {
	key   string
	value string
}

func newMemo(size int) *memo {
	if size <= 0 {
		size = DefaultMemoSize
	}
	return &memo{
		size:    size,
		entries: make(map[string]*list.Element, size),
		lru:     list.New(),
	}
}

func (m *memo) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return "", false
	}
	m.lru.MoveToFront(elem)
	return elem.Value.(*memoEntry).value, true
}

func (m *memo) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		elem.Value.(*memoEntry).value = value
		m.lru.MoveToFront(elem)
		return
	}

	m.entries[key] = m.lru.PushFront(&memoEntry{key: key, value: value})
	for m.lru.Len() > m.size {
		oldest := m.lru.Back()
		m.lru.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoEntry).key)
	}
}

func (m *memo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
