package redis

import (
	"testing"
	"time"

	"quiz-lobby-service/internal/app"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRoomRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := NewRoomRegistry(client, time.Minute)

	if ok := registry.Put("ABC123", &app.Room{}); !ok {
		t.Fatalf("expected insert to succeed")
	}
	if !mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected redis liveness key to be set")
	}

	if ok := registry.Put("ABC123", &app.Room{}); ok {
		t.Fatalf("expected collision to be rejected")
	}

	registry.Delete("ABC123")
	if mr.Exists("quiz:room:ABC123") {
		t.Fatalf("expected redis liveness key to be removed")
	}
	if _, ok := registry.Get("ABC123"); ok {
		t.Fatalf("expected room removed locally")
	}
}
