package partition

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFor_Determinism(t *testing.T) {
	// Same input must always produce the same shard.
	key := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC).Unix()
	id := For(key)
	for i := 0; i < 100; i++ {
		if got := For(key); got != id {
			t.Fatalf("For(%d) = %d on iteration %d, want %d", key, got, i, id)
		}
	}
}

func TestFor_Range(t *testing.T) {
	// All outputs must be in [0, Count).
	inputs := []int64{0, 1, -1, 86400, 1 << 40, -(1 << 40)}
	for _, k := range inputs {
		p := For(k)
		if p < 0 || p >= Count {
			t.Errorf("For(%d) = %d, want [0, %d)", k, p, Count)
		}
	}
}

func TestFor_Distribution(t *testing.T) {
	// Consecutive days (the real key pattern) should spread across shards.
	// 365 keys over 64 shards: expected unique count is ~62; 40 is a floor.
	seen := make(map[int]struct{})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 365; i++ {
		seen[For(start.AddDate(0, 0, i).Unix())] = struct{}{}
	}
	if len(seen) < 40 {
		t.Errorf("only %d distinct shards from 365 days, want >= 40", len(seen))
	}
}

func TestMap_LoadStoreUpdate(t *testing.T) {
	m := NewMap[[]int]()

	_, ok := m.Load(1)
	require.False(t, ok)

	m.Store(1, []int{1})
	got := m.Update(1, func(cur []int, exists bool) []int {
		require.True(t, exists)
		return append(cur, 2)
	})
	require.Equal(t, []int{1, 2}, got)

	m.Update(2, func(cur []int, exists bool) []int {
		require.False(t, exists)
		return []int{3}
	})

	require.Equal(t, 2, m.Len())
	require.Equal(t, map[int64][]int{1: {1, 2}, 2: {3}}, m.Snapshot())
}

func TestMap_ConcurrentUpdates(t *testing.T) {
	m := NewMap[int]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Update(int64(i%50), func(cur int, _ bool) int { return cur + 1 })
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, v := range m.Snapshot() {
		total += v
	}
	require.Equal(t, 8000, total)
	require.Equal(t, 50, m.Len())
}
