package ws

import "encoding/json"

// MessageType constants for the session WebSocket protocol.
const (
	// Client -> Server
	TypeCreateSession = "create_session"
	TypeJoinSession   = "join_session"
	TypeFindOpen      = "find_open"
	TypeBuzz          = "buzz"
	TypeSubmitAnswer  = "submit_answer"
	TypeLeaveSession  = "leave_session"
	TypeDeleteSession = "delete_session"

	// Server -> Client
	TypeSessionJoined = "session_joined"
	TypeSessionUpdate = "session_update"
	TypeSessionClosed = "session_closed"
	TypeBuzzRejected  = "buzz_rejected"
	TypeError         = "error"
	TypePing          = "ping"
	TypePong          = "pong"
)

// Message wraps every WebSocket payload with a type and optional request id.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client messages (incoming)

// RulesPayload carries the match rules a creating client asks for.
type RulesPayload struct {
	WinPoints          int      `json:"win_points,omitempty"`
	WrongAnswerPenalty string   `json:"wrong_answer_penalty,omitempty"`
	TotalQuestions     int      `json:"total_questions,omitempty"`
	NextQuestionDelay  float64  `json:"next_question_delay_seconds,omitempty"`
	Subjects           []string `json:"subjects,omitempty"`
}

type CreateSessionPayload struct {
	PlayerID    string        `json:"player_id,omitempty"`
	Name        string        `json:"name"`
	Rules       *RulesPayload `json:"rules,omitempty"`
	IsOpenMatch bool          `json:"is_open_match,omitempty"`
}

type JoinSessionPayload struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id,omitempty"`
	Name      string `json:"name"`
}

type FindOpenPayload struct {
	PlayerID string        `json:"player_id,omitempty"`
	Name     string        `json:"name"`
	Rules    *RulesPayload `json:"rules,omitempty"`
}

type SubmitAnswerPayload struct {
	Answer string `json:"answer"`
}

// Server messages (outgoing)

type SessionJoinedPayload struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	IsHost    bool   `json:"is_host"`
}

// SessionUpdatePayload is the per-client view of a session snapshot. The
// correct answer never leaves the server; judgment is server-side.
type SessionUpdatePayload struct {
	SessionID            string        `json:"session_id"`
	Status               string        `json:"status"`
	IsOpenMatch          bool          `json:"is_open_match"`
	Rules                RulesPayload  `json:"rules"`
	Players              []PlayerView  `json:"players"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	CurrentQuestion      *QuestionView `json:"current_question,omitempty"`
	WinnerID             string        `json:"winner_id,omitempty"`
	IsHost               bool          `json:"is_host"`
	OpponentName         string        `json:"opponent_name,omitempty"`
}

type PlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsHost bool   `json:"is_host"`
}

type QuestionView struct {
	QuestionID      string   `json:"question_id"`
	Text            string   `json:"text"`
	IsSelectable    bool     `json:"is_selectable"`
	Options         []string `json:"options,omitempty"`
	Status          string   `json:"status"`
	BuzzedPlayerID  string   `json:"buzzed_player_id,omitempty"`
	AnswererID      string   `json:"answerer_id,omitempty"`
	LockedOut       []string `json:"locked_out_players,omitempty"`
	SubmittedAnswer string   `json:"submitted_answer,omitempty"`
}

type SessionClosedPayload struct {
	SessionID string `json:"session_id"`
}

type BuzzRejectedPayload struct {
	SessionID string `json:"session_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
