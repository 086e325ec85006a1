package partition

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

// Count is the fixed number of lock shards per Map.
const Count = 64

// For returns the shard for a bucket key.
// Stable and deterministic: same key always maps to the same shard.
// Uses FNV-32a (stdlib, fast, well-distributed).
func For(key int64) int {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(key))
	h := fnv.New32a()
	h.Write(b[:])
	return int(h.Sum32() % Count)
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[int64]V
}

// Map is a concurrent map sharded by key. Writers to different shards never
// contend; each shard has its own lock.
type Map[V any] struct {
	shards [Count]shard[V]
}

// NewMap returns an empty Map.
func NewMap[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[int64]V)
	}
	return m
}

// Load returns the value stored for key.
func (m *Map[V]) Load(key int64) (V, bool) {
	s := &m.shards[For(key)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Store sets the value for key.
func (m *Map[V]) Store(key int64, v V) {
	s := &m.shards[For(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = v
}

// Update applies fn to the current value for key under the shard's write lock
// and stores the result. exists is false when key had no value.
func (m *Map[V]) Update(key int64, fn func(cur V, exists bool) V) V {
	s := &m.shards[For(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[key]
	next := fn(cur, ok)
	s.items[key] = next
	return next
}

// Len returns the number of keys.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Snapshot copies every entry into a plain map. Shards are read one at a time,
// so entries written concurrently may or may not be included.
func (m *Map[V]) Snapshot() map[int64]V {
	out := make(map[int64]V)
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.items {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}
