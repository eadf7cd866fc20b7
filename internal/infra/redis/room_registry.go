package redis

import (
	"context"
	"sync"
	"time"

	"quiz-lobby-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// RoomRegistry is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Live room state stays in a local map; a *Room holds timers and
//     subscriber channels that cannot leave the process.
//   - Redis marks room-code liveness so an operator (or a future
//     cross-instance router) can see which codes are taken.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out snapshots.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (r *RoomRegistry) Put(code string, room *app.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[code]; exists {
		return false
	}
	r.rooms[code] = room
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(code), "1", r.ttl).Err()
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
	if _, ok := r.rooms[code]; !ok {
		return
	}
	delete(r.rooms, code)
	_ = r.client.Del(context.Background(), r.key(code)).Err()
}

func (r *RoomRegistry) key(code string) string {
	return "quiz:room:" + code
}
