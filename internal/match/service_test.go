package match

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkatarai/hayaoshi/internal/game"
	"github.com/rkatarai/hayaoshi/internal/store"
)

func testService(t *testing.T) (*Service, *store.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	st := store.NewRedis(client, zerolog.Nop(), time.Hour)
	return NewService(st, zerolog.Nop()), st
}

func testRules() game.Rules {
	return game.Rules{
		WinPoints:          8,
		WrongAnswerPenalty: game.PenaltyLockout,
		TotalQuestions:     10,
	}
}

func TestCreateAllocatesFourDigitID(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, false)
	require.NoError(t, err)

	n, err := strconv.Atoi(id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1000)
	assert.LessOrEqual(t, n, 9999)

	sess, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, sess.Status)
	assert.Equal(t, -1, sess.CurrentQuestionIndex)
	assert.True(t, sess.Players["p1"].IsHost)
	assert.False(t, sess.IsOpenMatch)
}

func TestCreateNormalizesRules(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	// Zero-value rules through the Go API must not produce a session that
	// finishes on the first advance with winPoints=0.
	id, err := svc.Create(ctx, game.Rules{}, game.Player{ID: "p1", Name: "Hana"}, false)
	require.NoError(t, err)

	sess, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, game.DefaultWinPoints, sess.Rules.WinPoints)
	assert.Equal(t, game.PenaltyLockout, sess.Rules.WrongAnswerPenalty)
	assert.Equal(t, game.DefaultTotalQuestions, sess.Rules.TotalQuestions)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	// Far fewer sessions than the 9000-wide id space, so every create must
	// land on a free id eventually.
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, false)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate session id handed out")
		seen[id] = true
	}
}

func TestJoin(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, false)
	require.NoError(t, err)

	require.NoError(t, svc.Join(ctx, id, game.Player{ID: "p2", Name: "Goro"}))

	sess, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Players, 2)
	assert.False(t, sess.Players["p2"].IsHost)
}

func TestJoinMissingSession(t *testing.T) {
	svc, _ := testService(t)
	err := svc.Join(context.Background(), "0000", game.Player{ID: "p2", Name: "Goro"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJoinFullSession(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, false)
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, id, game.Player{ID: "p2", Name: "Goro"}))

	err = svc.Join(ctx, id, game.Player{ID: "p3", Name: "Taro"})
	assert.ErrorIs(t, err, game.ErrSessionFull)
}

func TestFindOrCreateOpenJoinsExisting(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	openID, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, true)
	require.NoError(t, err)

	matchedID, err := svc.FindOrCreateOpen(ctx, testRules(), game.Player{ID: "p2", Name: "Goro"})
	require.NoError(t, err)
	assert.Equal(t, openID, matchedID)

	sess, err := svc.Get(ctx, matchedID)
	require.NoError(t, err)
	assert.Len(t, sess.Players, 2)
}

func TestFindOrCreateOpenSkipsPrivateSessions(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	privateID, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, false)
	require.NoError(t, err)

	matchedID, err := svc.FindOrCreateOpen(ctx, testRules(), game.Player{ID: "p2", Name: "Goro"})
	require.NoError(t, err)
	assert.NotEqual(t, privateID, matchedID, "private sessions are invisible to open matching")

	sess, err := svc.Get(ctx, matchedID)
	require.NoError(t, err)
	assert.True(t, sess.IsOpenMatch)
	assert.True(t, sess.Players["p2"].IsHost, "the creator of a fresh open session hosts it")
}

func TestFindOrCreateOpenCreatesWhenNoneWaiting(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	id, err := svc.FindOrCreateOpen(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"})
	require.NoError(t, err)

	sess, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, sess.IsOpenMatch)
	assert.Len(t, sess.Players, 1)
}

func TestDeleteRequiresHost(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, testRules(), game.Player{ID: "p1", Name: "Hana"}, false)
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, id, game.Player{ID: "p2", Name: "Goro"}))

	assert.ErrorIs(t, svc.Delete(ctx, id, "p2"), ErrPermissionDenied)

	require.NoError(t, svc.Delete(ctx, id, "p1"))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
