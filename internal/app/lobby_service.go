package app

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/selector"
)

// RoomRepository abstracts how live rooms are stored (in-memory, Redis-backed).
// Put reports false on a code collision so the caller can retry with a
// fresh code.
type RoomRepository interface {
	Put(code string, room *Room) bool
	Get(code string) (*Room, bool)
	Delete(code string)
}

// PoolRepository materializes the question bank (cached memory, Redis, Postgres).
type PoolRepository interface {
	GetPools(ctx context.Context) (domain.QuestionPools, error)
}

// Config carries the quiz parameters applied to every new room.
type Config struct {
	QuestionCount   int
	Pacing          domain.PacingMode
	QuestionTimeout time.Duration
	Selector        selector.Options
}

// LobbyService contains the lobby and quiz use cases.
type LobbyService struct {
	rooms   RoomRepository
	pools   PoolRepository
	cfg     Config
	logger  *slog.Logger
	newRand func() *rand.Rand
}

func NewLobbyService(rooms RoomRepository, pools PoolRepository, cfg Config, logger *slog.Logger) *LobbyService {
	return NewLobbyServiceWithRand(rooms, pools, cfg, logger, func() *rand.Rand {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	})
}

// NewLobbyServiceWithRand injects the random source so tests can pin the
// question selection.
func NewLobbyServiceWithRand(rooms RoomRepository, pools PoolRepository, cfg Config, logger *slog.Logger, newRand func() *rand.Rand) *LobbyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LobbyService{
		rooms:   rooms,
		pools:   pools,
		cfg:     cfg,
		logger:  logger,
		newRand: newRand,
	}
}

// CreateRoom builds a question list, allocates a collision-checked room
// code, and seats the creator. The creator token is the only one with
// start and grading authority; authority never transfers.
func (s *LobbyService) CreateRoom(ctx context.Context, name, avatar string, questionCount int, connRef string) (domain.RoomCreated, error) {
	n := questionCount
	if n <= 0 {
		n = s.cfg.QuestionCount
	}

	pools, err := s.pools.GetPools(ctx)
	if err != nil {
		return domain.RoomCreated{}, err
	}
	questions := selector.Select(pools, n, s.cfg.Selector, s.newRand())
	if len(questions) == 0 {
		return domain.RoomCreated{}, domain.ErrNoQuestionsAvailable
	}

	token := uuid.NewString()
	roomCfg := RoomConfig{Pacing: s.cfg.Pacing, QuestionTimeout: s.cfg.QuestionTimeout}

	var code string
	var room *Room
	for {
		code = newRoomCode()
		room = newRoom(code, token, questions, roomCfg)
		if s.rooms.Put(code, room) {
			break
		}
	}

	if err := room.addPlayer(token, name, avatar, connRef); err != nil {
		return domain.RoomCreated{}, err
	}

	s.logger.Info("room created", "room", code, "questions", len(questions), "pacing", roomCfg.Pacing)
	return domain.RoomCreated{
		RoomCode:  code,
		Token:     token,
		Questions: questions,
		IsCreator: true,
		Avatar:    avatar,
	}, nil
}

// JoinRoom seats a new player. Late joins are admitted in any phase.
func (s *LobbyService) JoinRoom(_ context.Context, code, name, avatar, connRef string) (domain.RoomJoined, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RoomJoined{}, domain.ErrRoomNotFound
	}

	token := uuid.NewString()
	if err := room.addPlayer(token, name, avatar, connRef); err != nil {
		return domain.RoomJoined{}, domain.ErrRoomNotFound
	}

	s.logger.Info("player joined", "room", code, "name", name)
	return domain.RoomJoined{
		RoomCode:  code,
		Token:     token,
		Questions: room.questions,
		IsCreator: false,
		Avatar:    avatar,
	}, nil
}

// Rejoin rebinds an existing identity to a new connection and returns the
// full resume snapshot.
func (s *LobbyService) Rejoin(_ context.Context, code, token, connRef string) (domain.RejoinState, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RejoinState{}, domain.ErrSessionExpired
	}
	return room.rebind(token, connRef)
}

// Leave removes the player; the last player out deletes the room
// immediately, with no grace period.
func (s *LobbyService) Leave(_ context.Context, code, token string) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return
	}
	if room.removePlayer(token) {
		s.rooms.Delete(code)
		room.shutdown()
		s.logger.Info("room deleted", "room", code)
	}
}

// StartQuiz is creator-only; the transport drops ErrUnauthorized silently.
func (s *LobbyService) StartQuiz(_ context.Context, code, token string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.start(token)
}

// SubmitAnswer records an answer slot; last write wins.
func (s *LobbyService) SubmitAnswer(_ context.Context, code, token string, questionIndex int, answer string, timedOut bool) (domain.AnswerAck, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.AnswerAck{}, domain.ErrRoomNotFound
	}
	return room.submitAnswer(token, questionIndex, answer, timedOut)
}

// ValidateAnswer grades one (player, question) cell, creator-only.
func (s *LobbyService) ValidateAnswer(_ context.Context, code, token, playerToken string, questionIndex int, isCorrect bool) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.validate(token, playerToken, questionIndex, isCorrect)
}

// Snapshot answers requestState without side effects.
func (s *LobbyService) Snapshot(_ context.Context, code string) (domain.Snapshot, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.Snapshot{}, domain.ErrRoomNotFound
	}
	return room.snapshot(), nil
}

// Subscribe returns the room's broadcast channel. The caller must invoke
// the cancel function to avoid leaks.
func (s *LobbyService) Subscribe(_ context.Context, code string) (<-chan Event, func(), error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}
