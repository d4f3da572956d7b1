package game

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
)

var (
	// ErrInvalidTransition marks an operation attempted outside its guard.
	// Callers are expected to treat it as a no-op: concurrent clients
	// naturally produce stale attempts against old snapshots.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAlreadyStarted is returned when joining a session that left waiting.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrSessionFull is returned when joining a session with two players.
	ErrSessionFull = errors.New("session is full")
)

// AddPlayer admits a second contestant while the session is still waiting.
func (s *Session) AddPlayer(p Player) error {
	if s.Status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if _, ok := s.Players[p.ID]; ok {
		return nil // duplicate join, keep the existing entry
	}
	if len(s.Players) >= 2 {
		return ErrSessionFull
	}
	p.IsHost = false
	p.Score = 0
	s.Players[p.ID] = p
	return nil
}

// Start moves the session from waiting to playing: scores are zeroed, the
// resolved question sequence is persisted on the session, and the first round
// is installed. Host-side only.
func (s *Session) Start(questions []Question) error {
	if s.Status != StatusWaiting || len(s.Players) != 2 {
		return ErrInvalidTransition
	}
	if len(questions) == 0 {
		return ErrInvalidTransition
	}
	for id, p := range s.Players {
		p.Score = 0
		s.Players[id] = p
	}
	s.Status = StatusPlaying
	s.Questions = questions
	s.CurrentQuestionIndex = 0
	s.CurrentQuestion = newRound(questions[0])
	return nil
}

// Buzz claims the exclusive right to answer the current question.
// Exactly one concurrent buzz wins: the transform runs under the store's
// compare-and-swap, so the loser re-reads and fails the guard here.
func (s *Session) Buzz(playerID string) error {
	r := s.CurrentQuestion
	if s.Status != StatusPlaying || r == nil || r.Status != RoundReading {
		return ErrInvalidTransition
	}
	if r.BuzzedPlayerID != "" || r.AnswererID != "" || r.IsLockedOut(playerID) {
		return ErrInvalidTransition
	}
	if _, ok := s.Players[playerID]; !ok {
		return ErrInvalidTransition
	}
	r.BuzzedPlayerID = playerID
	r.AnswererID = playerID
	r.Status = RoundAnswering
	return nil
}

// Submit records the in-flight answer of the current answerer for judgment.
func (s *Session) Submit(playerID, text string) error {
	r := s.CurrentQuestion
	if s.Status != StatusPlaying || r == nil || r.Status != RoundAnswering {
		return ErrInvalidTransition
	}
	if r.AnswererID != playerID {
		return ErrInvalidTransition
	}
	r.SubmitterID = playerID
	r.SubmittedAnswer = text
	r.Status = RoundJudging
	return nil
}

// Judge resolves the submitted answer. Correctness is trim-exact string
// equality, no fuzzy matching. The returned flag tells the host whether a
// delayed question advance should be scheduled.
func (s *Session) Judge() (advance bool, err error) {
	r := s.CurrentQuestion
	if s.Status != StatusPlaying || r == nil || r.Status != RoundJudging || r.SubmitterID == "" {
		return false, ErrInvalidTransition
	}
	answererID := r.SubmitterID
	correct := strings.TrimSpace(r.SubmittedAnswer) == strings.TrimSpace(r.Answer)

	if correct {
		p := s.Players[answererID]
		p.Score++
		s.Players[answererID] = p
		r.Status = RoundCorrect
		r.BuzzedPlayerID = ""
		r.AnswererID = ""
		r.SubmitterID = ""
		r.SubmittedAnswer = ""
		return true, nil
	}

	if s.Rules.WrongAnswerPenalty == PenaltyMinusOne {
		p := s.Players[answererID]
		if p.Score > 0 {
			p.Score--
		}
		s.Players[answererID] = p
	}
	next, advance := ApplyPenalty(s.Rules.WrongAnswerPenalty, *r, len(s.Players))
	s.CurrentQuestion = &next
	return advance, nil
}

// ApplyPenalty computes the round state that follows a wrong answer. It is a
// pure function of the penalty kind, the round, and the contestant count;
// score changes are the caller's concern. The second return value reports
// whether the round is resolved and the question should advance.
func ApplyPenalty(kind PenaltyKind, r Round, playerCount int) (Round, bool) {
	offender := r.SubmitterID
	r.AnswererID = ""
	r.SubmitterID = ""
	r.SubmittedAnswer = ""
	r.BuzzedPlayerID = ""

	if kind == PenaltyLockout {
		if offender != "" && !r.IsLockedOut(offender) {
			r.LockedOut = append(r.LockedOut, offender)
		}
		if len(r.LockedOut) < playerCount {
			// Re-open the buzz for everyone still eligible.
			r.Status = RoundReading
			return r, false
		}
	}
	r.Status = RoundWrong
	return r, true
}

// Advance moves to the next question in the persisted sequence, or finishes
// the match. The win condition is re-checked first; expectedIndex guards
// against a duplicate timer firing twice for the same round.
func (s *Session) Advance(expectedIndex int) error {
	r := s.CurrentQuestion
	if s.Status != StatusPlaying || r == nil || s.CurrentQuestionIndex != expectedIndex {
		return ErrInvalidTransition
	}
	if r.Status != RoundCorrect && r.Status != RoundWrong {
		return ErrInvalidTransition
	}

	if winner := s.qualifiedWinner(); winner != "" {
		s.finish(winner)
		return nil
	}
	nextIndex := expectedIndex + 1
	if nextIndex >= len(s.Questions) {
		s.finish(s.leader())
		return nil
	}
	s.CurrentQuestionIndex = nextIndex
	s.CurrentQuestion = newRound(s.Questions[nextIndex])
	return nil
}

func (s *Session) finish(winnerID string) {
	s.Status = StatusFinished
	s.WinnerID = winnerID
	s.CurrentQuestion = nil
}

// qualifiedWinner returns the highest-scoring player at or above the win
// points, ties broken by ascending player id, or "" when nobody qualifies.
func (s *Session) qualifiedWinner() string {
	return s.pickWinner(true)
}

// leader returns the player with the strictly higher score; equal scores fall
// back to ascending player id so the result stays deterministic.
func (s *Session) leader() string {
	return s.pickWinner(false)
}

func (s *Session) pickWinner(requireQualified bool) string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	winner := ""
	best := -1
	for _, id := range ids {
		p := s.Players[id]
		if requireQualified && p.Score < s.Rules.WinPoints {
			continue
		}
		if p.Score > best {
			best = p.Score
			winner = id
		}
	}
	return winner
}

func newRound(q Question) *Round {
	return &Round{
		QuestionID:   q.ID,
		Text:         q.Text,
		Answer:       q.Answer,
		IsSelectable: q.IsSelectable,
		Options:      shuffledOptions(q.Options),
		Status:       RoundReading,
	}
}

// shuffledOptions returns an unbiased permutation of the answer choices,
// leaving the source slice untouched.
func shuffledOptions(options []string) []string {
	if len(options) == 0 {
		return nil
	}
	out := make([]string, len(options))
	copy(out, options)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
