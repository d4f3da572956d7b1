package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(rules Rules) *Session {
	s := &Session{
		ID:     "1234",
		Status: StatusWaiting,
		Rules:  rules,
		Players: map[string]Player{
			"host": {ID: "host", Name: "Hana", IsHost: true},
		},
		CurrentQuestionIndex: -1,
	}
	return s
}

func testQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			ID:     string(rune('a' + i)),
			Text:   "question",
			Answer: "answer",
		}
	}
	return qs
}

func startedSession(t *testing.T, rules Rules, questions []Question) *Session {
	t.Helper()
	s := testSession(rules)
	require.NoError(t, s.AddPlayer(Player{ID: "guest", Name: "Goro"}))
	require.NoError(t, s.Start(questions))
	return s
}

func TestAddPlayer(t *testing.T) {
	t.Run("fills the second seat", func(t *testing.T) {
		s := testSession(Rules{})
		require.NoError(t, s.AddPlayer(Player{ID: "guest", Name: "Goro", IsHost: true, Score: 5}))

		p := s.Players["guest"]
		assert.False(t, p.IsHost, "joiner must never arrive as host")
		assert.Zero(t, p.Score)
	})

	t.Run("duplicate join is a no-op", func(t *testing.T) {
		s := testSession(Rules{})
		require.NoError(t, s.AddPlayer(Player{ID: "guest", Name: "Goro"}))
		require.NoError(t, s.AddPlayer(Player{ID: "guest", Name: "Impostor"}))

		assert.Equal(t, "Goro", s.Players["guest"].Name)
		assert.Len(t, s.Players, 2)
	})

	t.Run("third player is rejected", func(t *testing.T) {
		s := testSession(Rules{})
		require.NoError(t, s.AddPlayer(Player{ID: "guest", Name: "Goro"}))
		assert.ErrorIs(t, s.AddPlayer(Player{ID: "third", Name: "Taro"}), ErrSessionFull)
	})

	t.Run("joining a started session fails", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 2}, testQuestions(1))
		assert.ErrorIs(t, s.AddPlayer(Player{ID: "late", Name: "Osoi"}), ErrAlreadyStarted)
	})
}

func TestStart(t *testing.T) {
	s := testSession(Rules{WinPoints: 2})
	require.NoError(t, s.AddPlayer(Player{ID: "guest", Name: "Goro"}))

	qs := testQuestions(3)
	require.NoError(t, s.Start(qs))

	assert.Equal(t, StatusPlaying, s.Status)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, RoundReading, s.CurrentQuestion.Status)
	assert.Equal(t, qs[0].ID, s.CurrentQuestion.QuestionID)
	assert.Len(t, s.Questions, 3)

	assert.ErrorIs(t, s.Start(qs), ErrInvalidTransition, "second start must fail the waiting guard")
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	s := testSession(Rules{})
	assert.ErrorIs(t, s.Start(testQuestions(1)), ErrInvalidTransition)
}

func TestBuzz(t *testing.T) {
	t.Run("first buzz claims the answer right", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 2}, testQuestions(1))
		require.NoError(t, s.Buzz("guest"))

		r := s.CurrentQuestion
		assert.Equal(t, "guest", r.BuzzedPlayerID)
		assert.Equal(t, "guest", r.AnswererID)
		assert.Equal(t, RoundAnswering, r.Status)
	})

	t.Run("second buzz loses", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 2}, testQuestions(1))
		require.NoError(t, s.Buzz("guest"))
		assert.ErrorIs(t, s.Buzz("host"), ErrInvalidTransition)
		assert.Equal(t, "guest", s.CurrentQuestion.AnswererID, "loser must not displace the winner")
	})

	t.Run("locked out player cannot buzz", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 2, WrongAnswerPenalty: PenaltyLockout}, testQuestions(1))
		s.CurrentQuestion.LockedOut = []string{"guest"}
		assert.ErrorIs(t, s.Buzz("guest"), ErrInvalidTransition)
	})

	t.Run("stranger cannot buzz", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 2}, testQuestions(1))
		assert.ErrorIs(t, s.Buzz("stranger"), ErrInvalidTransition)
	})
}

func TestSubmit(t *testing.T) {
	s := startedSession(t, Rules{WinPoints: 2}, testQuestions(1))
	require.NoError(t, s.Buzz("guest"))

	assert.ErrorIs(t, s.Submit("host", "answer"), ErrInvalidTransition, "only the answerer may submit")

	require.NoError(t, s.Submit("guest", "  answer  "))
	r := s.CurrentQuestion
	assert.Equal(t, "guest", r.SubmitterID)
	assert.Equal(t, "  answer  ", r.SubmittedAnswer)
	assert.Equal(t, RoundJudging, r.Status)
}

func TestJudgeCorrect(t *testing.T) {
	s := startedSession(t, Rules{WinPoints: 2}, testQuestions(2))
	require.NoError(t, s.Buzz("guest"))
	require.NoError(t, s.Submit("guest", "  answer "))

	advance, err := s.Judge()
	require.NoError(t, err)
	assert.True(t, advance)

	assert.Equal(t, 1, s.Players["guest"].Score)
	r := s.CurrentQuestion
	assert.Equal(t, RoundCorrect, r.Status)
	assert.Empty(t, r.BuzzedPlayerID)
	assert.Empty(t, r.AnswererID)
	assert.Empty(t, r.SubmitterID)
	assert.Empty(t, r.SubmittedAnswer)
}

func TestJudgeWrongLockout(t *testing.T) {
	s := startedSession(t, Rules{WinPoints: 2, WrongAnswerPenalty: PenaltyLockout}, testQuestions(2))
	require.NoError(t, s.Buzz("guest"))
	require.NoError(t, s.Submit("guest", "nope"))

	advance, err := s.Judge()
	require.NoError(t, err)
	assert.False(t, advance, "one of two players locked out reopens the buzz")

	r := s.CurrentQuestion
	assert.Equal(t, RoundReading, r.Status)
	assert.Equal(t, []string{"guest"}, r.LockedOut)
	assert.Empty(t, r.BuzzedPlayerID)
	assert.Zero(t, s.Players["guest"].Score, "lockout does not touch the score")

	// The opponent takes the reopened question.
	require.NoError(t, s.Buzz("host"))
	require.NoError(t, s.Submit("host", "answer"))
	advance, err = s.Judge()
	require.NoError(t, err)
	assert.True(t, advance)
	assert.Equal(t, 1, s.Players["host"].Score)
}

func TestJudgeWrongLockoutAllPlayers(t *testing.T) {
	s := startedSession(t, Rules{WinPoints: 2, WrongAnswerPenalty: PenaltyLockout}, testQuestions(2))
	for _, id := range []string{"guest", "host"} {
		require.NoError(t, s.Buzz(id))
		require.NoError(t, s.Submit(id, "nope"))
		_, err := s.Judge()
		require.NoError(t, err)
	}

	r := s.CurrentQuestion
	assert.Equal(t, RoundWrong, r.Status, "everyone locked out resolves the question")
	assert.Len(t, r.LockedOut, 2)
}

func TestJudgeWrongMinusOne(t *testing.T) {
	s := startedSession(t, Rules{WinPoints: 3, WrongAnswerPenalty: PenaltyMinusOne}, testQuestions(3))

	// Score floor: a wrong answer at zero stays at zero.
	require.NoError(t, s.Buzz("guest"))
	require.NoError(t, s.Submit("guest", "nope"))
	advance, err := s.Judge()
	require.NoError(t, err)
	assert.True(t, advance, "minus_one resolves the question immediately")
	assert.Zero(t, s.Players["guest"].Score)
	assert.Equal(t, RoundWrong, s.CurrentQuestion.Status)

	require.NoError(t, s.Advance(0))

	// Above zero the penalty subtracts.
	p := s.Players["guest"]
	p.Score = 2
	s.Players["guest"] = p
	require.NoError(t, s.Buzz("guest"))
	require.NoError(t, s.Submit("guest", "nope"))
	_, err = s.Judge()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Players["guest"].Score)
}

func TestJudgeWithoutSubmission(t *testing.T) {
	s := startedSession(t, Rules{WinPoints: 2}, testQuestions(1))
	_, err := s.Judge()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyPenalty(t *testing.T) {
	base := Round{
		QuestionID:      "q1",
		SubmitterID:     "guest",
		AnswererID:      "guest",
		BuzzedPlayerID:  "guest",
		SubmittedAnswer: "nope",
		Status:          RoundJudging,
	}

	t.Run("lockout reopens while players remain", func(t *testing.T) {
		next, advance := ApplyPenalty(PenaltyLockout, base, 2)
		assert.False(t, advance)
		assert.Equal(t, RoundReading, next.Status)
		assert.Equal(t, []string{"guest"}, next.LockedOut)
		assert.Empty(t, next.SubmitterID)
		assert.Empty(t, next.BuzzedPlayerID)
		assert.Empty(t, next.SubmittedAnswer)
	})

	t.Run("lockout resolves when everyone is out", func(t *testing.T) {
		r := base
		r.LockedOut = []string{"host"}
		next, advance := ApplyPenalty(PenaltyLockout, r, 2)
		assert.True(t, advance)
		assert.Equal(t, RoundWrong, next.Status)
		assert.ElementsMatch(t, []string{"host", "guest"}, next.LockedOut)
	})

	t.Run("minus_one always resolves", func(t *testing.T) {
		next, advance := ApplyPenalty(PenaltyMinusOne, base, 2)
		assert.True(t, advance)
		assert.Equal(t, RoundWrong, next.Status)
		assert.Empty(t, next.LockedOut)
	})

	t.Run("repeat offender is not double-locked", func(t *testing.T) {
		r := base
		r.LockedOut = []string{"guest"}
		next, _ := ApplyPenalty(PenaltyLockout, r, 2)
		assert.Equal(t, []string{"guest"}, next.LockedOut)
	})
}

func TestAdvance(t *testing.T) {
	t.Run("installs the next question", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 5}, testQuestions(3))
		resolveRound(t, s, "guest", "answer")

		require.NoError(t, s.Advance(0))
		assert.Equal(t, 1, s.CurrentQuestionIndex)
		assert.Equal(t, RoundReading, s.CurrentQuestion.Status)
		assert.Empty(t, s.CurrentQuestion.LockedOut)
	})

	t.Run("duplicate timer fires only once", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 5}, testQuestions(3))
		resolveRound(t, s, "guest", "answer")

		require.NoError(t, s.Advance(0))
		assert.ErrorIs(t, s.Advance(0), ErrInvalidTransition)
		assert.Equal(t, 1, s.CurrentQuestionIndex)
	})

	t.Run("unresolved round cannot advance", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 5}, testQuestions(3))
		assert.ErrorIs(t, s.Advance(0), ErrInvalidTransition)
	})

	t.Run("win condition fires before installing the next question", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 1}, testQuestions(3))
		resolveRound(t, s, "guest", "answer")

		require.NoError(t, s.Advance(0))
		assert.Equal(t, StatusFinished, s.Status)
		assert.Equal(t, "guest", s.WinnerID)
		assert.Nil(t, s.CurrentQuestion)
	})

	t.Run("exhaustion picks the higher scorer", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 10}, testQuestions(1))
		resolveRound(t, s, "guest", "answer")

		require.NoError(t, s.Advance(0))
		assert.Equal(t, StatusFinished, s.Status)
		assert.Equal(t, "guest", s.WinnerID)
	})

	t.Run("exhaustion tie is deterministic", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 10, WrongAnswerPenalty: PenaltyLockout}, testQuestions(1))
		for _, id := range []string{"guest", "host"} {
			require.NoError(t, s.Buzz(id))
			require.NoError(t, s.Submit(id, "nope"))
			_, err := s.Judge()
			require.NoError(t, err)
		}

		require.NoError(t, s.Advance(0))
		assert.Equal(t, StatusFinished, s.Status)
		assert.Equal(t, "guest", s.WinnerID, "equal scores fall back to ascending player id")
	})

	t.Run("qualified winner with higher score wins", func(t *testing.T) {
		s := startedSession(t, Rules{WinPoints: 2}, testQuestions(5))
		ph := s.Players["host"]
		ph.Score = 3
		s.Players["host"] = ph
		pg := s.Players["guest"]
		pg.Score = 2
		s.Players["guest"] = pg
		resolveRound(t, s, "host", "answer")

		require.NoError(t, s.Advance(0))
		assert.Equal(t, "host", s.WinnerID)
	})
}

func resolveRound(t *testing.T, s *Session, answerer, answer string) {
	t.Helper()
	require.NoError(t, s.Buzz(answerer))
	require.NoError(t, s.Submit(answerer, answer))
	_, err := s.Judge()
	require.NoError(t, err)
}

func TestShuffledOptionsKeepsContents(t *testing.T) {
	options := []string{"a", "b", "c", "d"}
	got := shuffledOptions(options)
	assert.ElementsMatch(t, options, got)
	assert.Equal(t, []string{"a", "b", "c", "d"}, options, "source slice must not change")
}

func TestRulesNormalize(t *testing.T) {
	r := Rules{}.Normalize()
	assert.Equal(t, DefaultWinPoints, r.WinPoints)
	assert.Equal(t, PenaltyLockout, r.WrongAnswerPenalty)
	assert.Equal(t, DefaultTotalQuestions, r.TotalQuestions)

	r = Rules{WinPoints: 3, WrongAnswerPenalty: PenaltyMinusOne, TotalQuestions: 5, NextQuestionDelay: 1.5}.Normalize()
	assert.Equal(t, 3, r.WinPoints)
	assert.Equal(t, PenaltyMinusOne, r.WrongAnswerPenalty)
	assert.Equal(t, 5, r.TotalQuestions)
	assert.Equal(t, 1.5, r.NextQuestionDelay)
}
