package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	ids := NewSequentialIDs("suppression")
	assert.Equal(t, int64(0), ids.Issued())
	assert.Equal(t, "suppression-0001", ids.Generate())
	assert.Equal(t, "suppression-0002", ids.Generate())
	assert.Equal(t, int64(2), ids.Issued())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-0001", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_Reset(t *testing.T) {
	ids := NewSequentialIDs("s")
	ids.Generate()
	ids.Generate()
	ids.Reset()
	assert.Equal(t, int64(0), ids.Issued())
	assert.Equal(t, "s-0001", ids.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("c")
	const goroutines, perGoroutine = 20, 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := ids.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perGoroutine, "no ID is issued twice")
	assert.Equal(t, int64(goroutines*perGoroutine), ids.Issued())
}
