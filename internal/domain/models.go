package domain

// Category identifies a typed question pool.
type Category string

const (
	// CategoryGeneral is the default pool; residual capacity lands here.
	CategoryGeneral Category = "general"
	// CategoryScene holds movie-scene identification questions.
	CategoryScene Category = "scene"
	// CategoryPerson holds person-identification questions.
	CategoryPerson Category = "person"
)

// Question is immutable once selected for a room. Two questions are the
// same iff both Text and Answer match.
type Question struct {
	Text   string `json:"text"`
	Answer string `json:"answer"`
	Image  string `json:"image,omitempty"`
}

// Key returns the dedup identity of a question.
func (q Question) Key() string {
	return q.Text + "\x00" + q.Answer
}

// QuestionPools is the materialized question bank, one slice per category.
type QuestionPools map[Category][]Question

// IsEmpty reports whether no category holds any question.
func (p QuestionPools) IsEmpty() bool {
	for _, pool := range p {
		if len(pool) > 0 {
			return false
		}
	}
	return true
}

// Phase is the room's current stage.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseQuiz       Phase = "quiz"
	PhaseValidation Phase = "validation"
	PhaseResult     Phase = "result"
)

// PacingMode selects how the quiz phase decides a question is done.
type PacingMode string

const (
	// PaceAllAtOnce delivers the whole list up front; the phase ends when
	// every player has answered every slot.
	PaceAllAtOnce PacingMode = "all-at-once"
	// PacePerQuestion keeps one question open at a time, advancing when
	// everyone answered it or its deadline elapsed.
	PacePerQuestion PacingMode = "per-question"
)

// PlayerView is the client-safe projection of a player session. Answers
// are nullable: nil means the slot was never written.
type PlayerView struct {
	Token   string    `json:"token"`
	Name    string    `json:"name"`
	Avatar  string    `json:"avatar,omitempty"`
	Score   int       `json:"score"`
	Answers []*string `json:"answers"`
}

// Validations maps a player token to one nullable grade per question.
type Validations map[string][]*bool

// Snapshot is the canonical room state every client needs to render. It is
// regenerated from room state on demand; there is no hidden accumulator.
type Snapshot struct {
	Phase         Phase        `json:"phase"`
	QuestionIndex int          `json:"questionIndex"`
	Players       []PlayerView `json:"players"`
	Questions     []Question   `json:"questions"`
	Validations   Validations  `json:"validations"`
}

// RoomCreated acknowledges a successful createLobby to its creator.
type RoomCreated struct {
	RoomCode  string     `json:"roomCode"`
	Token     string     `json:"token"`
	Questions []Question `json:"questions"`
	IsCreator bool       `json:"isCreator"`
	Avatar    string     `json:"avatar,omitempty"`
}

// RoomJoined acknowledges a successful joinLobby to the joiner.
type RoomJoined struct {
	RoomCode  string     `json:"roomCode"`
	Token     string     `json:"token"`
	Questions []Question `json:"questions"`
	IsCreator bool       `json:"isCreator"`
	Avatar    string     `json:"avatar,omitempty"`
}

// RejoinState is the full resume payload after a reconnect.
type RejoinState struct {
	RoomCode  string `json:"roomCode"`
	Token     string `json:"token"`
	IsCreator bool   `json:"isCreator"`
	Snapshot
}

// AnswerAck confirms to the submitting connection that its answer landed.
type AnswerAck struct {
	QuestionIndex int  `json:"questionIndex"`
	TimedOut      bool `json:"timedOut"`
}

// ValidationUpdate broadcasts one graded cell.
type ValidationUpdate struct {
	PlayerToken   string `json:"playerToken"`
	QuestionIndex int    `json:"questionIndex"`
	IsCorrect     bool   `json:"isCorrect"`
	Score         int    `json:"score"`
}

// Ranking is the final scoreboard: score descending, ties in join order.
type Ranking struct {
	Ranking []PlayerView `json:"ranking"`
}
