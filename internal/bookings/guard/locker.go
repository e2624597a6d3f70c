package guard

import (
	"context"
	"sync"

	"roombook/pkg/model"
)

// Locker grants exclusive access to one (room, date) slot key. Lock blocks
// until the key is free or ctx is done. Work done under the lock must use the
// returned held context, which ends no later than the lock itself may expire.
// The unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key model.SlotKey) (held context.Context, unlock func(), err error)
}

// KeyedMutex is an in-process table of per-key locks. Entries are created on
// first use and dropped once nobody holds or waits for them, so the table
// stays proportional to the keys in flight.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[model.SlotKey]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[model.SlotKey]*keyLock),
	}
}

// Lock never expires on its own, so the held context is ctx.
func (m *KeyedMutex) Lock(ctx context.Context, key model.SlotKey) (context.Context, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	l := m.acquireRef(key)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.releaseRef(key, l)
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			<-l.sem
			m.releaseRef(key, l)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *KeyedMutex) acquireRef(key model.SlotKey) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) releaseRef(key model.SlotKey, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Chain acquires every locker in order and releases them in reverse. Each
// locker is handed the held context of the one before it, so the final held
// context ends with the earliest expiry.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) Lock(ctx context.Context, key model.SlotKey) (context.Context, func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	held := ctx
	for _, locker := range c {
		next, unlock, err := locker.Lock(held, key)
		if err != nil {
			releaseAll()
			return nil, nil, err
		}
		held = next
		unlocks = append(unlocks, unlock)
	}

	var once sync.Once
	return held, func() { once.Do(releaseAll) }, nil
}
