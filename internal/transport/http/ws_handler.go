package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.LobbyService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LobbyService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	QuestionCount int    `json:"questionCount"`
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

type rejoinPayload struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
}

type answerPayload struct {
	RoomCode      string `json:"roomCode"`
	Token         string `json:"token"`
	QuestionIndex int    `json:"questionIndex"`
	Answer        string `json:"answer"`
	TimedOut      bool   `json:"timedOut"`
}

type validatePayload struct {
	RoomCode      string `json:"roomCode"`
	Token         string `json:"token"`
	PlayerToken   string `json:"playerToken"`
	QuestionIndex int    `json:"questionIndex"`
	IsCorrect     bool   `json:"isCorrect"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// lobby use cases. Each connection is one player seat: room-wide events
// arrive via the room subscription, acknowledgments are written directly.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	ctx := r.Context()

	send := make(chan outboundMessage[any], 32)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "err", err)
				return
			}
		}
	}()

	// unsubscribe tears down the current room subscription; a connection
	// follows at most one room at a time.
	var unsubscribe func()
	followRoom := func(code string) error {
		updates, cancel, err := h.service.Subscribe(ctx, code)
		if err != nil {
			return err
		}
		if unsubscribe != nil {
			unsubscribe()
		}
		forwarderDone := make(chan struct{})
		go func() {
			defer close(forwarderDone)
			for {
				select {
				case ev, ok := <-updates:
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: ev.Type, Payload: ev.Payload}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
		unsubscribe = func() {
			cancel()
			<-forwarderDone
		}
		return nil
	}

	fail := func(err error) {
		// Unauthorized actions come from stale client state; they are
		// dropped with no feedback.
		if errors.Is(err, domain.ErrUnauthorized) {
			return
		}
		send <- outboundMessage[any]{Type: "errorMsg", Payload: errorPayload{Message: err.Error()}}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "createLobby":
			var p createPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid createLobby payload"))
				continue
			}
			created, err := h.service.CreateRoom(ctx, p.Name, p.Avatar, p.QuestionCount, connID)
			if err != nil {
				fail(err)
				continue
			}
			if err := followRoom(created.RoomCode); err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "lobbyCreated", Payload: created}

		case "joinLobby":
			var p joinPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid joinLobby payload"))
				continue
			}
			joined, err := h.service.JoinRoom(ctx, p.RoomCode, p.Name, p.Avatar, connID)
			if err != nil {
				fail(err)
				continue
			}
			if err := followRoom(joined.RoomCode); err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "lobbyJoined", Payload: joined}

		case "rejoinLobby":
			var p rejoinPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid rejoinLobby payload"))
				continue
			}
			state, err := h.service.Rejoin(ctx, p.RoomCode, p.Token, connID)
			if err != nil {
				fail(err)
				continue
			}
			if err := followRoom(p.RoomCode); err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "rejoinSuccess", Payload: state}

		case "requestState":
			var p roomPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid requestState payload"))
				continue
			}
			snap, err := h.service.Snapshot(ctx, p.RoomCode)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: app.EventStateSync, Payload: snap}

		case "startQuiz":
			var p roomPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid startQuiz payload"))
				continue
			}
			if err := h.service.StartQuiz(ctx, p.RoomCode, p.Token); err != nil {
				fail(err)
			}

		case "submitAnswer":
			var p answerPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid submitAnswer payload"))
				continue
			}
			ack, err := h.service.SubmitAnswer(ctx, p.RoomCode, p.Token, p.QuestionIndex, p.Answer, p.TimedOut)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerAck", Payload: ack}

		case "validateAnswer":
			var p validatePayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid validateAnswer payload"))
				continue
			}
			if err := h.service.ValidateAnswer(ctx, p.RoomCode, p.Token, p.PlayerToken, p.QuestionIndex, p.IsCorrect); err != nil {
				fail(err)
			}

		case "leaveLobby":
			var p roomPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid leaveLobby payload"))
				continue
			}
			h.service.Leave(ctx, p.RoomCode, p.Token)
			if unsubscribe != nil {
				unsubscribe()
				unsubscribe = nil
			}

		default:
			fail(errors.New("unsupported message type"))
		}
	}

	// Disconnect is not leave: the session stays alive for rejoin.
	close(closeSignals)
	if unsubscribe != nil {
		unsubscribe()
	}
	close(send)
	<-writerDone
}
