package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/rkatarai/hayaoshi/internal/game"
	"github.com/rkatarai/hayaoshi/internal/store"
)

// ErrPermissionDenied marks a host-only operation attempted by a guest.
var ErrPermissionDenied = errors.New("permission denied")

// SessionStore is the store surface the matchmaking and engine layers need.
// Implemented by store.Redis.
type SessionStore interface {
	Create(ctx context.Context, sess *game.Session) error
	Get(ctx context.Context, id string) (*game.Session, error)
	Update(ctx context.Context, id string, transform func(*game.Session) error) (*game.Session, error)
	Delete(ctx context.Context, id string) error
	FindWaiting(ctx context.Context, limit int) ([]*game.Session, error)
	Watch(ctx context.Context, id string) (<-chan *game.Session, error)
}

const (
	// Session ids are 4-digit decimal strings in [1000, 9999]: short enough
	// to read over voice, 9000 values of collision space.
	idRangeLow  = 1000
	idRangeSpan = 9000

	// createRetries bounds the collision-retry loop so an unexpectedly full
	// id space fails loudly instead of spinning forever.
	createRetries = 50

	// openMatchPageSize caps the matchmaking query; a cost bound, not a
	// correctness requirement.
	openMatchPageSize = 10
)

// Service handles session creation, joining, open matchmaking and teardown.
type Service struct {
	store  SessionStore
	logger zerolog.Logger
}

// NewService creates the matchmaking service.
func NewService(store SessionStore, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create allocates a collision-checked 4-digit session id and writes a new
// waiting session with the creator as host.
func (s *Service) Create(ctx context.Context, rules game.Rules, host game.Player, isOpenMatch bool) (string, error) {
	rules = rules.Normalize()
	host.IsHost = true
	host.Score = 0

	for attempt := 0; attempt < createRetries; attempt++ {
		id := fmt.Sprint(idRangeLow + rand.Intn(idRangeSpan))
		sess := &game.Session{
			ID:                   id,
			Status:               game.StatusWaiting,
			IsOpenMatch:          isOpenMatch,
			Rules:                rules,
			Players:              map[string]game.Player{host.ID: host},
			CurrentQuestionIndex: -1,
			CreatedAt:            time.Now().UTC(),
		}

		err := s.store.Create(ctx, sess)
		if errors.Is(err, store.ErrExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}

		visibility := visibilityPrivate
		if isOpenMatch {
			visibility = visibilityOpen
		}
		sessionsCreated.WithLabelValues(visibility).Inc()
		s.logger.Info().
			Str("session_id", id).
			Str("host_id", host.ID).
			Bool("open_match", isOpenMatch).
			Msg("session created")
		return id, nil
	}
	return "", fmt.Errorf("no free session id after %d attempts", createRetries)
}

// Join adds a guest to a waiting session. Fails with store.ErrNotFound,
// game.ErrAlreadyStarted or game.ErrSessionFull.
func (s *Service) Join(ctx context.Context, sessionID string, player game.Player) error {
	_, err := s.store.Update(ctx, sessionID, func(sess *game.Session) error {
		return sess.AddPlayer(player)
	})
	if err != nil {
		return err
	}

	sessionsJoined.Inc()
	s.logger.Info().
		Str("session_id", sessionID).
		Str("player_id", player.ID).
		Msg("player joined session")
	return nil
}

// FindOrCreateOpen joins the first open 1-player waiting session, or creates
// a new open session with the caller promoted to host. Two concurrent callers
// may both create a room; that leaves two open 1-player rooms, never a
// collision, and the next searcher will fill one of them.
func (s *Service) FindOrCreateOpen(ctx context.Context, rules game.Rules, player game.Player) (string, error) {
	candidates, err := s.store.FindWaiting(ctx, openMatchPageSize)
	if err != nil {
		return "", fmt.Errorf("find open sessions: %w", err)
	}

	for _, cand := range candidates {
		if !cand.IsOpenMatch || len(cand.Players) != 1 {
			continue
		}
		if err := s.Join(ctx, cand.ID, player); err != nil {
			// Filled or removed since the query; try the next candidate.
			s.logger.Debug().Err(err).Str("session_id", cand.ID).Msg("open session no longer joinable")
			continue
		}
		return cand.ID, nil
	}
	return s.Create(ctx, rules, player, true)
}

// Get reads a session snapshot once.
func (s *Service) Get(ctx context.Context, sessionID string) (*game.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// Delete tears the session down. Host-only; anyone else gets
// ErrPermissionDenied rather than a silent no-op.
func (s *Service) Delete(ctx context.Context, sessionID, callerID string) error {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.HostID() != callerID {
		return ErrPermissionDenied
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info().Str("session_id", sessionID).Str("host_id", callerID).Msg("session deleted")
	return nil
}
