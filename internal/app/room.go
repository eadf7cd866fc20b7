package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-lobby-service/internal/domain"
)

// Event is one outbound broadcast for every connection in a room.
type Event struct {
	Type    string
	Payload any
}

// Broadcast event types. Unicast replies (lobbyCreated, answerAck, ...) are
// written directly by the transport and never go through the subscriber set.
const (
	EventPlayersUpdate    = "playersUpdate"
	EventPhaseChange      = "phaseChange"
	EventStateSync        = "stateSync"
	EventQuizStarted      = "quizStarted"
	EventStartValidation  = "startValidation"
	EventValidationUpdate = "validationUpdated"
	EventValidationEnded  = "validationEnded"
)

// RoomConfig fixes a room's pacing behavior at creation time.
type RoomConfig struct {
	Pacing domain.PacingMode
	// QuestionTimeout bounds each question in per-question mode. Zero
	// disables the deadline; advancement then relies on answers alone.
	QuestionTimeout time.Duration
}

// Room is one isolated quiz session. The mutex serializes every handler
// (client events and timer fires alike); each mutation broadcasts while
// still holding the lock, so subscribers observe changes in order.
type Room struct {
	code         string
	creatorToken string
	cfg          RoomConfig
	questions    []domain.Question

	mu          sync.Mutex
	phase       domain.Phase
	currentQ    int
	players     map[string]*playerSession
	joinSeq     int
	validations domain.Validations
	deadline    *time.Timer
	timerGen    int
	closed      bool
	subscribers map[chan Event]struct{}
}

// playerSession is owned exclusively by its room. connRef is a non-owning
// transport reference, rebound on reconnect and never used for liveness.
type playerSession struct {
	token   string
	connRef string
	name    string
	avatar  string
	score   int
	answers []*string
	joinSeq int
	// joinedAtQ is the question index open when the player joined; in
	// per-question mode earlier slots are exempt from completion checks.
	joinedAtQ int
}

func newRoom(code, creatorToken string, questions []domain.Question, cfg RoomConfig) *Room {
	if cfg.Pacing == "" {
		cfg.Pacing = domain.PaceAllAtOnce
	}
	return &Room{
		code:         code,
		creatorToken: creatorToken,
		cfg:          cfg,
		questions:    questions,
		phase:        domain.PhaseLobby,
		players:      make(map[string]*playerSession),
		validations:  make(domain.Validations),
		subscribers:  make(map[chan Event]struct{}),
	}
}

// addPlayer admits a player in any phase. Joins during validation or result
// are spectators: they get no ledger row and cannot be graded.
func (r *Room) addPlayer(token, name, avatar, connRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomNotFound
	}

	joinedAt := 0
	if r.phase == domain.PhaseQuiz && r.cfg.Pacing == domain.PacePerQuestion {
		joinedAt = r.currentQ
	}
	r.players[token] = &playerSession{
		token:     token,
		connRef:   connRef,
		name:      name,
		avatar:    avatar,
		answers:   make([]*string, len(r.questions)),
		joinSeq:   r.joinSeq,
		joinedAtQ: joinedAt,
	}
	r.joinSeq++

	r.broadcastLocked(Event{Type: EventPlayersUpdate, Payload: r.playersLocked()})
	r.broadcastLocked(Event{Type: EventStateSync, Payload: r.snapshotLocked()})
	return nil
}

// rebind points an existing session at a new connection and returns the
// full resume state.
func (r *Room) rebind(token, connRef string) (domain.RejoinState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[token]
	if !ok || r.closed {
		return domain.RejoinState{}, domain.ErrSessionExpired
	}
	p.connRef = connRef

	r.broadcastLocked(Event{Type: EventPlayersUpdate, Payload: r.playersLocked()})
	return domain.RejoinState{
		RoomCode:  r.code,
		Token:     token,
		IsCreator: token == r.creatorToken,
		Snapshot:  r.snapshotLocked(),
	}, nil
}

// removePlayer drops a session and its ledger row, reporting whether the
// room is now empty. A departure can satisfy the pending completion
// predicate, so quiz and validation phases are re-checked.
func (r *Room) removePlayer(token string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[token]; !ok {
		return len(r.players) == 0
	}
	delete(r.players, token)
	delete(r.validations, token)

	r.broadcastLocked(Event{Type: EventPlayersUpdate, Payload: r.playersLocked()})

	if len(r.players) == 0 {
		return true
	}

	switch r.phase {
	case domain.PhaseQuiz:
		r.checkQuizCompletionLocked()
	case domain.PhaseValidation:
		r.checkValidationCompletionLocked()
	}
	r.broadcastLocked(Event{Type: EventStateSync, Payload: r.snapshotLocked()})
	return false
}

// start transitions lobby -> quiz. Only the creator token may trigger it;
// any other token is unauthorized and the phase is untouched.
func (r *Room) start(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token != r.creatorToken {
		return domain.ErrUnauthorized
	}
	if r.phase != domain.PhaseLobby {
		return domain.ErrWrongPhase
	}

	r.phase = domain.PhaseQuiz
	r.currentQ = 0
	if r.cfg.Pacing == domain.PacePerQuestion {
		r.armDeadlineLocked()
	}

	r.broadcastLocked(Event{Type: EventPhaseChange, Payload: phasePayload{Phase: r.phase}})
	r.broadcastLocked(Event{Type: EventQuizStarted, Payload: struct{}{}})
	r.broadcastLocked(Event{Type: EventStateSync, Payload: r.snapshotLocked()})
	return nil
}

// submitAnswer writes an answer slot, last write wins. Resubmission is an
// allowed overwrite; there is no answer idempotence requirement.
func (r *Room) submitAnswer(token string, idx int, answer string, timedOut bool) (domain.AnswerAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[token]
	if !ok {
		return domain.AnswerAck{}, domain.ErrPlayerNotFound
	}
	if r.phase != domain.PhaseQuiz {
		return domain.AnswerAck{}, domain.ErrWrongPhase
	}
	if idx < 0 || idx >= len(r.questions) {
		return domain.AnswerAck{}, domain.ErrQuestionOutOfRange
	}

	v := answer
	p.answers[idx] = &v

	r.broadcastLocked(Event{Type: EventPlayersUpdate, Payload: r.playersLocked()})
	r.checkQuizCompletionLocked()
	r.broadcastLocked(Event{Type: EventStateSync, Payload: r.snapshotLocked()})

	return domain.AnswerAck{QuestionIndex: idx, TimedOut: timedOut}, nil
}

// validate grades one (player, question) cell. The first grade stands;
// duplicates are rejected, never overwritten.
func (r *Room) validate(token, playerToken string, idx int, isCorrect bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token != r.creatorToken {
		return domain.ErrUnauthorized
	}
	if r.phase != domain.PhaseValidation {
		return domain.ErrWrongPhase
	}
	if idx < 0 || idx >= len(r.questions) {
		return domain.ErrQuestionOutOfRange
	}
	row, ok := r.validations[playerToken]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if row[idx] != nil {
		return domain.ErrAlreadyGraded
	}

	grade := isCorrect
	row[idx] = &grade
	p := r.players[playerToken]
	if isCorrect && p != nil {
		p.score++
	}

	score := 0
	if p != nil {
		score = p.score
	}
	r.broadcastLocked(Event{Type: EventValidationUpdate, Payload: domain.ValidationUpdate{
		PlayerToken:   playerToken,
		QuestionIndex: idx,
		IsCorrect:     isCorrect,
		Score:         score,
	}})

	r.checkValidationCompletionLocked()
	r.broadcastLocked(Event{Type: EventStateSync, Payload: r.snapshotLocked()})
	return nil
}

// snapshot returns the canonical state without side effects.
func (r *Room) snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// subscribe registers a broadcast channel. The first event is the current
// snapshot so a fresh connection can render immediately.
func (r *Room) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	initial := r.snapshotLocked()
	r.mu.Unlock()

	ch <- Event{Type: EventStateSync, Payload: initial}

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// shutdown disarms the pending timer and marks the room dead so a late
// timer fire or join finds nothing to act on.
func (r *Room) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cancelDeadlineLocked()
}

// checkQuizCompletionLocked applies the configured pacing predicate and
// advances the machine when the question (or the whole list) is done.
func (r *Room) checkQuizCompletionLocked() {
	switch r.cfg.Pacing {
	case domain.PacePerQuestion:
		if r.everyoneAnsweredLocked(r.currentQ) {
			r.advanceQuestionLocked()
		}
	default:
		if r.everyoneFinishedLocked() {
			r.enterValidationLocked()
		}
	}
}

// advanceQuestionLocked moves per-question mode forward, cancelling the old
// deadline and arming a fresh one, or hands over to validation after the
// last question.
func (r *Room) advanceQuestionLocked() {
	r.cancelDeadlineLocked()
	if r.currentQ >= len(r.questions)-1 {
		r.enterValidationLocked()
		return
	}
	r.currentQ++
	r.armDeadlineLocked()
}

func (r *Room) enterValidationLocked() {
	r.cancelDeadlineLocked()
	r.phase = domain.PhaseValidation
	r.currentQ = 0

	r.validations = make(domain.Validations, len(r.players))
	for token := range r.players {
		r.validations[token] = make([]*bool, len(r.questions))
	}

	r.broadcastLocked(Event{Type: EventStartValidation, Payload: r.snapshotLocked()})
	r.broadcastLocked(Event{Type: EventPhaseChange, Payload: phasePayload{Phase: r.phase}})
}

// checkValidationCompletionLocked advances to the next question once every
// ledger row is graded at the current index, or finishes the session.
func (r *Room) checkValidationCompletionLocked() {
	if len(r.validations) == 0 {
		return
	}
	for _, row := range r.validations {
		if row[r.currentQ] == nil {
			return
		}
	}

	if r.currentQ < len(r.questions)-1 {
		r.currentQ++
		r.broadcastLocked(Event{Type: EventStartValidation, Payload: r.snapshotLocked()})
		return
	}

	r.phase = domain.PhaseResult
	r.broadcastLocked(Event{Type: EventPhaseChange, Payload: phasePayload{Phase: r.phase}})
	r.broadcastLocked(Event{Type: EventValidationEnded, Payload: domain.Ranking{Ranking: r.rankingLocked()}})
}

func (r *Room) everyoneFinishedLocked() bool {
	for _, p := range r.players {
		for _, a := range p.answers {
			if !answered(a) {
				return false
			}
		}
	}
	return true
}

func (r *Room) everyoneAnsweredLocked(idx int) bool {
	for _, p := range r.players {
		if p.joinedAtQ > idx {
			continue
		}
		if !answered(p.answers[idx]) {
			return false
		}
	}
	return true
}

// armDeadlineLocked schedules the per-question timeout. The generation
// counter invalidates fires that lost a race with a manual advance.
func (r *Room) armDeadlineLocked() {
	if r.cfg.QuestionTimeout <= 0 {
		return
	}
	r.timerGen++
	gen := r.timerGen
	r.deadline = time.AfterFunc(r.cfg.QuestionTimeout, func() {
		r.onDeadline(gen)
	})
}

func (r *Room) cancelDeadlineLocked() {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
	}
	r.timerGen++
}

// onDeadline is an ordinary event: it re-checks that the room is alive and
// the timer still current before forcing the question forward. A stale fire
// is a silent no-op.
func (r *Room) onDeadline(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != domain.PhaseQuiz || gen != r.timerGen {
		return
	}
	r.advanceQuestionLocked()
	r.broadcastLocked(Event{Type: EventStateSync, Payload: r.snapshotLocked()})
}

// playersLocked returns client-safe views in join order.
func (r *Room) playersLocked() []domain.PlayerView {
	sessions := make([]*playerSession, 0, len(r.players))
	for _, p := range r.players {
		sessions = append(sessions, p)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].joinSeq < sessions[j].joinSeq })

	views := make([]domain.PlayerView, 0, len(sessions))
	for _, p := range sessions {
		answers := make([]*string, len(p.answers))
		copy(answers, p.answers)
		views = append(views, domain.PlayerView{
			Token:   p.token,
			Name:    p.name,
			Avatar:  p.avatar,
			Score:   p.score,
			Answers: answers,
		})
	}
	return views
}

// rankingLocked sorts stably by score descending; ties keep join order.
func (r *Room) rankingLocked() []domain.PlayerView {
	views := r.playersLocked()
	sort.SliceStable(views, func(i, j int) bool { return views[i].Score > views[j].Score })
	return views
}

func (r *Room) snapshotLocked() domain.Snapshot {
	validations := make(domain.Validations, len(r.validations))
	for token, row := range r.validations {
		cp := make([]*bool, len(row))
		copy(cp, row)
		validations[token] = cp
	}
	return domain.Snapshot{
		Phase:         r.phase,
		QuestionIndex: r.currentQ,
		Players:       r.playersLocked(),
		Questions:     r.questions,
		Validations:   validations,
	}
}

// broadcastLocked fans an event out to every subscriber. A full channel
// sheds its oldest event first so a slow client never blocks the room.
func (r *Room) broadcastLocked(ev Event) {
	for ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

type phasePayload struct {
	Phase domain.Phase `json:"phase"`
}

// answered treats blank or whitespace-only submissions as unanswered.
func answered(a *string) bool {
	return a != nil && strings.TrimSpace(*a) != ""
}
