package memory

import (
	"sync"

	"quiz-lobby-service/internal/app"
)

// RoomRegistry is the in-process implementation of app.RoomRepository.
// The registry exclusively owns room existence: rooms are inserted at
// creation and removed when their player set empties.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*app.Room),
	}
}

// Put inserts the room unless the code is already taken.
func (r *RoomRegistry) Put(code string, room *app.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[code]; exists {
		return false
	}
	r.rooms[code] = room
	return true
}

func (r *RoomRegistry) Get(code string) (*app.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

func (r *RoomRegistry) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}
