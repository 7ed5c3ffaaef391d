package lobby

import (
	"context"
	"errors"
	"sync"

	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage"
)

var errBackendDown = errors.New("backend down")

// faultyRooms wraps a RoomRepository and injects failures on demand
type faultyRooms struct {
	storage.RoomRepository

	mu            sync.Mutex
	getFailures   int  // fail this many GetRoom calls
	saveFailures  int  // fail this many SaveRoom calls
	conflicts     int  // report this many version conflicts from SaveRoom
	stall         bool // block GetRoom until the context is done
	getCalls      int
	saveCalls     int
	createFailure error
}

// Ensure faultyRooms implements RoomRepository
var _ storage.RoomRepository = (*faultyRooms)(nil)

func (f *faultyRooms) CreateRoom(ctx context.Context, room *model.Room) error {
	f.mu.Lock()
	err := f.createFailure
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.RoomRepository.CreateRoom(ctx, room)
}

func (f *faultyRooms) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	f.mu.Lock()
	f.getCalls++
	stall := f.stall
	fail := f.getFailures > 0
	if fail {
		f.getFailures--
	}
	f.mu.Unlock()

	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errBackendDown
	}
	return f.RoomRepository.GetRoom(ctx, code)
}

func (f *faultyRooms) SaveRoom(ctx context.Context, room *model.Room) error {
	f.mu.Lock()
	f.saveCalls++
	var err error
	switch {
	case f.conflicts > 0:
		f.conflicts--
		err = storage.ErrVersionConflict
	case f.saveFailures > 0:
		f.saveFailures--
		err = errBackendDown
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.RoomRepository.SaveRoom(ctx, room)
}

func (f *faultyRooms) set(fn func(f *faultyRooms)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *faultyRooms) calls() (gets, saves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.saveCalls
}
