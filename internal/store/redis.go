package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rkatarai/hayaoshi/internal/game"
)

var (
	// ErrNotFound means no session exists at the given id.
	ErrNotFound = errors.New("session not found")

	// ErrExists means a session id collided on create.
	ErrExists = errors.New("session already exists")

	// ErrConflict means the optimistic update kept losing the version race.
	ErrConflict = errors.New("session update conflict")
)

const (
	defaultSessionTTL = 6 * time.Hour
	maxUpdateRetries  = 8
	watchBuffer       = 16
)

// casScript swaps the session body only when the stored version still matches
// the one the caller read, giving compare-and-swap semantics on top of the
// per-key last-write-wins store.
const casScript = `
if redis.call("HGET", KEYS[1], "ver") == ARGV[1] then
	redis.call("HSET", KEYS[1], "ver", ARGV[2], "data", ARGV[3])
	redis.call("EXPIRE", KEYS[1], ARGV[4])
	return 1
end
return 0
`

// createScript writes a fresh session only when the key is still free.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "ver", ARGV[1], "data", ARGV[2])
redis.call("EXPIRE", KEYS[1], ARGV[3])
return 1
`

// Redis keeps every session as a versioned document in a Redis hash, keeps a
// secondary index of waiting sessions for matchmaking, and fans out change
// notifications over pub/sub. Sessions expire after a TTL that is refreshed on
// every write, which is how abandoned rooms are eventually reclaimed.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
	ttl    time.Duration
}

// NewRedis creates a session store backed by the given Redis client.
func NewRedis(client *redis.Client, logger zerolog.Logger, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Redis{client: client, logger: logger, ttl: ttl}
}

func sessionKey(id string) string  { return "session:" + id }
func sessionChan(id string) string { return "session:events:" + id }

const waitingIndexKey = "sessions:waiting"

// Create writes a new session, failing with ErrExists on an id collision.
func (s *Redis) Create(ctx context.Context, sess *game.Session) error {
	sess.Version = 1
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.Eval(ctx, createScript,
		[]string{sessionKey(sess.ID)},
		"1", string(data), int(s.ttl.Seconds()),
	).Int()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if ok == 0 {
		return ErrExists
	}

	s.reindex(ctx, sess)
	s.notify(ctx, sess.ID)
	return nil
}

// Get reads the current session snapshot once.
func (s *Redis) Get(ctx context.Context, id string) (*game.Session, error) {
	data, err := s.client.HGet(ctx, sessionKey(id), "data").Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess game.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Update applies transform under optimistic concurrency: read, mutate,
// compare-and-swap, retry on a lost race. An error returned by transform
// aborts the update and is passed through untouched, so guard failures
// inside the state machine cost nothing.
func (s *Redis) Update(ctx context.Context, id string, transform func(*game.Session) error) (*game.Session, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		readVersion := sess.Version
		if err := transform(sess); err != nil {
			return nil, err
		}
		sess.Version = readVersion + 1

		data, err := json.Marshal(sess)
		if err != nil {
			return nil, fmt.Errorf("marshal session: %w", err)
		}

		ok, err := s.client.Eval(ctx, casScript,
			[]string{sessionKey(id)},
			fmt.Sprint(readVersion), fmt.Sprint(sess.Version), string(data), int(s.ttl.Seconds()),
		).Int()
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		if ok == 1 {
			s.reindex(ctx, sess)
			s.notify(ctx, id)
			return sess, nil
		}

		s.logger.Debug().Str("session_id", id).Int("attempt", attempt+1).Msg("session version race, retrying")
	}
	return nil, ErrConflict
}

// Delete removes the whole session subtree and tells watchers it is gone.
func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.client.SRem(ctx, waitingIndexKey, id).Err(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to drop waiting index entry")
	}
	s.notify(ctx, id)
	return nil
}

// FindWaiting returns up to limit sessions still in the waiting state. The
// index is self-healing: entries whose session expired or moved on are
// dropped as they are encountered.
func (s *Redis) FindWaiting(ctx context.Context, limit int) ([]*game.Session, error) {
	ids, err := s.client.SMembers(ctx, waitingIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}

	var out []*game.Session
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		sess, err := s.Get(ctx, id)
		if err == ErrNotFound {
			s.client.SRem(ctx, waitingIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if sess.Status != game.StatusWaiting {
			s.client.SRem(ctx, waitingIndexKey, id)
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// Watch streams session snapshots until ctx is canceled. The current snapshot
// is delivered first; a nil snapshot means the session was removed and the
// channel is closed afterwards. Each notification triggers a fresh read, so
// deliveries are always at least as new as the write that caused them.
func (s *Redis) Watch(ctx context.Context, id string) (<-chan *game.Session, error) {
	sub := s.client.Subscribe(ctx, sessionChan(id))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe session: %w", err)
	}

	out := make(chan *game.Session, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		if !s.deliver(ctx, id, out) {
			return
		}
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				if !s.deliver(ctx, id, out) {
					return
				}
			}
		}
	}()
	return out, nil
}

// deliver pushes the latest snapshot; returns false once the stream is done.
func (s *Redis) deliver(ctx context.Context, id string, out chan<- *game.Session) bool {
	sess, err := s.Get(ctx, id)
	if err == ErrNotFound {
		select {
		case out <- nil:
		case <-ctx.Done():
		}
		return false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("watch read failed")
		return true // transient, keep the subscription alive
	}
	select {
	case out <- sess:
	case <-ctx.Done():
		return false
	}
	return true
}

func (s *Redis) reindex(ctx context.Context, sess *game.Session) {
	var err error
	if sess.Status == game.StatusWaiting {
		err = s.client.SAdd(ctx, waitingIndexKey, sess.ID).Err()
	} else {
		err = s.client.SRem(ctx, waitingIndexKey, sess.ID).Err()
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to update waiting index")
	}
}

func (s *Redis) notify(ctx context.Context, id string) {
	if err := s.client.Publish(ctx, sessionChan(id), "1").Err(); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to publish session event")
	}
}
