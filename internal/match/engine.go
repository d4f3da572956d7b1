package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rkatarai/hayaoshi/internal/game"
	"github.com/rkatarai/hayaoshi/internal/question"
	"github.com/rkatarai/hayaoshi/internal/store"
)

// PoolResolver resolves the question sequence for a match. It never fails:
// degraded backends fall back to the builtin set.
type PoolResolver interface {
	Resolve(ctx context.Context, req question.Request) []game.Question
}

// Event carries a fresh session snapshot to the connection layer. Closed is
// set exactly once, when the session was deleted or expired, after which the
// event channel is closed.
type Event struct {
	Session *game.Session
	Closed  bool
}

const (
	sideEffectRetries = 5
	sideEffectBackoff = 200 * time.Millisecond
	engineEventBuffer = 16
)

// Engine observes one session on behalf of one connected player. Every
// connection runs its own engine; the engine whose player is the host also
// drives the match: it resolves the question pool, starts the game once both
// seats are filled, judges submitted answers, and schedules the delayed
// advance to the next question. All side effects go through the store's
// compare-and-swap, so a stale attempt fails its guard instead of clobbering
// newer state.
type Engine struct {
	store     SessionStore
	resolver  PoolResolver
	sessionID string
	playerID  string
	logger    zerolog.Logger

	mu               sync.Mutex
	latest           *game.Session
	resolving        bool
	judging          bool
	advanceScheduled map[int]bool
	runCtx           context.Context

	events chan Event
}

// NewEngine builds an engine for one player's view of one session. Run must
// be called before Events delivers anything.
func NewEngine(st SessionStore, resolver PoolResolver, sessionID, playerID string, logger zerolog.Logger) *Engine {
	return &Engine{
		store:            st,
		resolver:         resolver,
		sessionID:        sessionID,
		playerID:         playerID,
		logger:           logger.With().Str("session_id", sessionID).Str("player_id", playerID).Logger(),
		advanceScheduled: make(map[int]bool),
		events:           make(chan Event, engineEventBuffer),
	}
}

// Events returns the stream of session snapshots. The channel is closed when
// the session ends or Run returns.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Snapshot returns the most recently observed session state, or nil before
// the first delivery.
func (e *Engine) Snapshot() *game.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Run watches the session until the context is cancelled or the session is
// deleted. It blocks; callers run it in the connection's read goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	snapshots, err := e.store.Watch(ctx, e.sessionID)
	if err != nil {
		close(e.events)
		return fmt.Errorf("watch session: %w", err)
	}

	enginesActive.Inc()
	defer enginesActive.Dec()
	defer close(e.events)

	for snap := range snapshots {
		if snap == nil {
			e.emit(Event{Closed: true})
			e.logger.Debug().Msg("session closed")
			return nil
		}
		e.mu.Lock()
		e.latest = snap
		e.mu.Unlock()
		e.emit(Event{Session: snap})
		e.observe(snap)
	}
	return ctx.Err()
}

// Buzz claims the answer right for this engine's player. A lost race or a
// closed buzz window surfaces as game.ErrInvalidTransition.
func (e *Engine) Buzz(ctx context.Context) error {
	_, err := e.store.Update(ctx, e.sessionID, func(s *game.Session) error {
		return s.Buzz(e.playerID)
	})
	if err != nil {
		if errors.Is(err, game.ErrInvalidTransition) {
			buzzes.WithLabelValues(outcomeRejected).Inc()
		}
		return err
	}
	buzzes.WithLabelValues(outcomeWon).Inc()
	return nil
}

// SubmitAnswer records this player's answer for judgment. The host engine
// picks the submission up from the resulting snapshot.
func (e *Engine) SubmitAnswer(ctx context.Context, text string) error {
	_, err := e.store.Update(ctx, e.sessionID, func(s *game.Session) error {
		return s.Submit(e.playerID, text)
	})
	return err
}

// emit delivers an event without ever blocking the watch loop: when the
// buffer is full the oldest event is dropped, since only the latest snapshot
// matters to the client.
func (e *Engine) emit(ev Event) {
	for {
		select {
		case e.events <- ev:
			return
		default:
			select {
			case <-e.events:
			default:
			}
		}
	}
}

// observe runs the host side-effect chain against a fresh snapshot. Guest
// engines only relay snapshots.
func (e *Engine) observe(s *game.Session) {
	if !s.Players[e.playerID].IsHost {
		return
	}

	switch s.Status {
	case game.StatusWaiting:
		if len(s.Players) == 2 {
			e.maybeResolveAndStart(s.Rules)
		}
	case game.StatusPlaying:
		r := s.CurrentQuestion
		if r == nil {
			return
		}
		switch r.Status {
		case game.RoundJudging:
			e.maybeJudge()
		case game.RoundCorrect, game.RoundWrong:
			e.scheduleAdvance(s.CurrentQuestionIndex, s.Rules.NextQuestionDelay)
		}
	}
}

// maybeResolveAndStart resolves the question pool once and starts the match.
// Resolution runs off the watch loop; the start itself is idempotent because
// a second attempt fails the waiting guard.
func (e *Engine) maybeResolveAndStart(rules game.Rules) {
	e.mu.Lock()
	if e.resolving {
		e.mu.Unlock()
		return
	}
	e.resolving = true
	ctx := e.runCtx
	e.mu.Unlock()

	go func() {
		pool := e.resolver.Resolve(ctx, question.Request{
			Subjects: rules.Subjects,
			Count:    rules.TotalQuestions,
		})
		err := e.withRetry(ctx, "start", func() error {
			_, err := e.store.Update(ctx, e.sessionID, func(s *game.Session) error {
				return s.Start(pool)
			})
			return err
		})
		if err != nil && !errors.Is(err, game.ErrInvalidTransition) {
			e.logger.Error().Err(err).Msg("failed to start session")
			e.mu.Lock()
			e.resolving = false // allow the next snapshot to retry
			e.mu.Unlock()
		}
	}()
}

// maybeJudge resolves the pending submission. At most one judgment runs at a
// time per engine; the guard in Judge makes concurrent host engines safe.
func (e *Engine) maybeJudge() {
	e.mu.Lock()
	if e.judging {
		e.mu.Unlock()
		return
	}
	e.judging = true
	ctx := e.runCtx
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			e.judging = false
			e.mu.Unlock()
		}()

		var advance bool
		var judged *game.Session
		err := e.withRetry(ctx, "judge", func() error {
			updated, err := e.store.Update(ctx, e.sessionID, func(s *game.Session) error {
				a, err := s.Judge()
				advance = a
				return err
			})
			judged = updated
			return err
		})
		if err != nil {
			if !errors.Is(err, game.ErrInvalidTransition) {
				e.logger.Error().Err(err).Msg("judgment failed")
			}
			return
		}

		verdict := verdictWrong
		if r := judged.CurrentQuestion; r != nil && r.Status == game.RoundCorrect {
			verdict = verdictCorrect
		}
		judgments.WithLabelValues(verdict).Inc()

		if advance {
			e.scheduleAdvance(judged.CurrentQuestionIndex, judged.Rules.NextQuestionDelay)
		}
	}()
}

// scheduleAdvance arms the delayed move to the next question exactly once per
// question index. Duplicate snapshots of the same resolved round are the
// common case, not an error.
func (e *Engine) scheduleAdvance(index int, delaySeconds float64) {
	e.mu.Lock()
	if e.advanceScheduled[index] {
		e.mu.Unlock()
		return
	}
	e.advanceScheduled[index] = true
	ctx := e.runCtx
	e.mu.Unlock()

	delay := time.Duration(delaySeconds * float64(time.Second))
	time.AfterFunc(delay, func() {
		e.advance(ctx, index)
	})
}

func (e *Engine) advance(ctx context.Context, index int) {
	var updated *game.Session
	err := e.withRetry(ctx, "advance", func() error {
		u, err := e.store.Update(ctx, e.sessionID, func(s *game.Session) error {
			return s.Advance(index)
		})
		updated = u
		return err
	})
	if err != nil {
		if !errors.Is(err, game.ErrInvalidTransition) {
			e.logger.Error().Err(err).Int("question_index", index).Msg("advance failed")
			e.mu.Lock()
			delete(e.advanceScheduled, index) // let a later snapshot re-arm it
			e.mu.Unlock()
		}
		return
	}
	if updated.Status == game.StatusFinished {
		matchesFinished.Inc()
		e.logger.Info().Str("winner_id", updated.WinnerID).Msg("match finished")
	}
}

// withRetry runs a store side effect with backoff. Guard failures and missing
// sessions are terminal; everything else is assumed transient.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < sideEffectRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, game.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			return err
		}
		e.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("side effect retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sideEffectBackoff << attempt):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
