package game

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// PenaltyKind selects what happens to a player after a wrong answer.
type PenaltyKind string

const (
	PenaltyLockout  PenaltyKind = "lockout"
	PenaltyMinusOne PenaltyKind = "minus_one"
)

// RoundStatus tracks one question's presentation and judgment lifecycle.
type RoundStatus string

const (
	RoundReading   RoundStatus = "reading"
	RoundAnswering RoundStatus = "answering"
	RoundJudging   RoundStatus = "judging"
	RoundCorrect   RoundStatus = "answered_correct"
	RoundWrong     RoundStatus = "answered_wrong"
)

// Rules are fixed at session creation and never change afterwards.
type Rules struct {
	WinPoints          int         `json:"win_points"`
	WrongAnswerPenalty PenaltyKind `json:"wrong_answer_penalty"`
	TotalQuestions     int         `json:"total_questions"`
	NextQuestionDelay  float64     `json:"next_question_delay_seconds"`
	Subjects           []string    `json:"subjects,omitempty"`
}

// Rule defaults applied when a creating client leaves a field unset.
const (
	DefaultWinPoints         = 8
	DefaultTotalQuestions    = 10
	DefaultNextQuestionDelay = 3.0
)

// Normalize fills unset rule fields with their defaults and clamps the
// penalty kind to a known value.
func (r Rules) Normalize() Rules {
	if r.WinPoints <= 0 {
		r.WinPoints = DefaultWinPoints
	}
	if r.WrongAnswerPenalty != PenaltyMinusOne {
		r.WrongAnswerPenalty = PenaltyLockout
	}
	if r.TotalQuestions <= 0 {
		r.TotalQuestions = DefaultTotalQuestions
	}
	if r.NextQuestionDelay < 0 {
		r.NextQuestionDelay = DefaultNextQuestionDelay
	}
	return r
}

// Player is one of the (at most two) contestants in a session.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsHost bool   `json:"is_host"`
}

// Question is a pool entry, read-only to the session machinery.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Answer       string   `json:"answer"`
	Subject      string   `json:"subject"`
	Grade        string   `json:"grade,omitempty"`
	Options      []string `json:"options,omitempty"`
	IsSelectable bool     `json:"is_selectable"`
}

// Round is the live state of the question currently being played.
// Empty player-id fields mean "nobody"; guards are written against Status.
type Round struct {
	QuestionID      string      `json:"question_id"`
	Text            string      `json:"text"`
	Answer          string      `json:"answer"`
	IsSelectable    bool        `json:"is_selectable"`
	Options         []string    `json:"options,omitempty"`
	BuzzedPlayerID  string      `json:"buzzed_player_id,omitempty"`
	AnswererID      string      `json:"answerer_id,omitempty"`
	SubmitterID     string      `json:"submitter_id,omitempty"`
	SubmittedAnswer string      `json:"submitted_answer,omitempty"`
	Status          RoundStatus `json:"status"`
	LockedOut       []string    `json:"locked_out_players,omitempty"`
}

// Session is the root aggregate for one match, shared by both clients
// through the store. Version backs the optimistic compare-and-swap.
type Session struct {
	ID                   string            `json:"id"`
	Version              int64             `json:"version"`
	Status               Status            `json:"status"`
	IsOpenMatch          bool              `json:"is_open_match"`
	Rules                Rules             `json:"rules"`
	Players              map[string]Player `json:"players"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	CurrentQuestion      *Round            `json:"current_question,omitempty"`
	// Questions is the resolved, already-shuffled sequence for the whole
	// match, written once at start. Keeping it in the document lets a
	// reconnected host advance without re-resolving the pool.
	Questions []Question `json:"questions,omitempty"`
	WinnerID  string     `json:"winner_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsLockedOut reports whether a player is barred from buzzing on this round.
func (r *Round) IsLockedOut(playerID string) bool {
	for _, id := range r.LockedOut {
		if id == playerID {
			return true
		}
	}
	return false
}

// HostID returns the id of the host player, or "" if none is marked yet.
func (s *Session) HostID() string {
	for id, p := range s.Players {
		if p.IsHost {
			return id
		}
	}
	return ""
}

// Opponent returns the other player's entry, if present.
func (s *Session) Opponent(playerID string) (Player, bool) {
	for id, p := range s.Players {
		if id != playerID {
			return p, true
		}
	}
	return Player{}, false
}
