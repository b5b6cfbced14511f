package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversRangeOnce(t *testing.T) {
	const items = 1000

	var mu sync.Mutex
	seen := make([]int, items)
	Parallelize(items, 0, func(start, end int) {
		mu.Lock()
		defer mu.Unlock()
		for i := start; i < end; i++ {
			seen[i]++
		}
	})

	for i, c := range seen {
		assert.Equal(t, 1, c, "index %d", i)
	}
}

func TestParallelizeThresholdRunsInline(t *testing.T) {
	calls := 0
	Parallelize(8, 8, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 8, end)
	})
	assert.Equal(t, 1, calls)
}

func TestParallelizeZeroItems(t *testing.T) {
	Parallelize(0, 0, func(start, end int) {
		t.Fatal("fn called for empty range")
	})
}
