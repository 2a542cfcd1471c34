package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "g1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.locks)
}

func TestLocalDifferentKeysIndependent(t *testing.T) {
	l := NewLocal()
	u1, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer u1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	u2, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	u2()
}

func TestLocalTimeout(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock() // second call is a no-op
	assert.Empty(t, l.locks)
}

func TestChainReleasesOnFailure(t *testing.T) {
	first, second := NewLocal(), NewLocal()
	held, err := second.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Chain{first, second}.Lock(ctx, "k")
	require.ErrorIs(t, err, ErrLockTimeout)
	held()

	// first must have been released by the failed chain
	u, err := first.Lock(context.Background(), "k")
	require.NoError(t, err)
	u()
}
