// Package lock serializes operations on the same giveaway id, in process and
// across instances.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is returned when the lock could not be acquired before the
// context expired or the retry budget ran out.
var ErrLockTimeout = errors.New("lock: acquire timeout")

// Locker acquires an exclusive lock for key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process keyed mutex. Entries are dropped once unused.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *localEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

func (c Chain) Lock(ctx context.Context, key string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		u, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return releaseAll, nil
}

// GiveawayKey is the lock key shared by all status writers of a giveaway.
func GiveawayKey(id string) string { return "giveaway:" + id }
