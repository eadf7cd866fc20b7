package memory

import (
	"testing"

	"quiz-lobby-service/internal/app"
)

func TestRoomRegistryLifecycle(t *testing.T) {
	registry := NewRoomRegistry()

	if ok := registry.Put("ABC123", &app.Room{}); !ok {
		t.Fatalf("expected insert to succeed")
	}
	if _, ok := registry.Get("ABC123"); !ok {
		t.Fatalf("expected room present")
	}

	registry.Delete("ABC123")
	if _, ok := registry.Get("ABC123"); ok {
		t.Fatalf("expected room removed")
	}
}

func TestRoomRegistryRejectsCodeCollision(t *testing.T) {
	registry := NewRoomRegistry()

	if ok := registry.Put("ABC123", &app.Room{}); !ok {
		t.Fatalf("expected first insert to succeed")
	}
	if ok := registry.Put("ABC123", &app.Room{}); ok {
		t.Fatalf("expected collision to be rejected")
	}
}
