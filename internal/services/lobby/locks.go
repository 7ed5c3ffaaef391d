package lobby

import (
	"context"
	"sync"

	"github.com/mcoot/gamelobby/internal/model"
)

// roomLocks serialises mutations per room code. Entries are refcounted and
// removed once no caller holds or waits on them, so the table only grows
// with the number of rooms currently being mutated.
type roomLocks struct {
	mu    sync.Mutex
	locks map[model.RoomCode]*roomLock
}

type roomLock struct {
	sem  chan struct{}
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{
		locks: make(map[model.RoomCode]*roomLock),
	}
}

// acquire blocks until the room's lock is held or ctx is done.
// The returned release func must be called exactly once.
func (l *roomLocks) acquire(ctx context.Context, code model.RoomCode) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[code]
	if !ok {
		lk = &roomLock{sem: make(chan struct{}, 1)}
		l.locks[code] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.sem
				l.unref(code, lk)
			})
		}, nil
	case <-ctx.Done():
		l.unref(code, lk)
		return nil, ctx.Err()
	}
}

func (l *roomLocks) unref(code model.RoomCode, lk *roomLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, code)
	}
}

// size returns the number of live entries
func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
