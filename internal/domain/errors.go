package domain

import "errors"

var (
	// ErrNoQuestionsAvailable aborts room creation when the selector
	// produced an empty list; no room is created.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrRoomNotFound is returned when a room code matches no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrSessionExpired is returned on rejoin when the room or the
	// player session no longer exists; the client must restart its flow.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthorized marks a creator-only action attempted with another
	// token. It is dropped silently at the transport, never surfaced.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyGraded rejects a duplicate grade; the first grade stands.
	ErrAlreadyGraded = errors.New("answer already graded")
	// ErrPlayerNotFound is returned when a token matches no player session.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrQuestionOutOfRange rejects an answer or grade for an index
	// outside the room's fixed question list.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrWrongPhase rejects an action the current phase does not accept.
	ErrWrongPhase = errors.New("action not valid in current phase")
)
