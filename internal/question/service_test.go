package question

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkatarai/hayaoshi/internal/game"
)

type stubCurated struct {
	questions []game.Question
	err       error
}

func (s *stubCurated) FetchBySubjects(_ context.Context, subjects []string, limit int) ([]game.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []game.Question
	for _, q := range s.questions {
		if subjectMatches(q.Subject, subjects) {
			out = append(out, q)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubCatalog struct {
	nodes map[string]map[string]CatalogQuestion
	err   error
}

func (s *stubCatalog) Fetch(_ context.Context) (map[string]map[string]CatalogQuestion, error) {
	return s.nodes, s.err
}

func ids(pool []game.Question) []string {
	out := make([]string, len(pool))
	for i, q := range pool {
		out[i] = q.ID
	}
	return out
}

func TestResolveMergesSourcesInPriorityOrder(t *testing.T) {
	curated := &stubCurated{questions: []game.Question{
		{ID: "cur-1", Text: "curated", Answer: "a", Subject: "国語"},
		{ID: "dup", Text: "curated version", Answer: "a", Subject: "国語"},
	}}
	catalog := &stubCatalog{nodes: map[string]map[string]CatalogQuestion{
		"japanese": {
			"q1":  {QuestionID: "cat-1", Text: "catalog", Answer: "b"},
			"dup": {QuestionID: "dup", Text: "catalog version", Answer: "b"},
		},
	}}

	r := NewResolver(curated, catalog, zerolog.Nop())
	pool := r.Resolve(context.Background(), Request{Subjects: []string{"japanese"}})

	assert.Contains(t, ids(pool), "cur-1")
	assert.Contains(t, ids(pool), "cat-1")
	for _, q := range pool {
		if q.ID == "dup" {
			assert.Equal(t, "curated version", q.Text, "curated source wins id collisions")
		}
	}
}

func TestResolveSurvivesFailingSources(t *testing.T) {
	curated := &stubCurated{err: errors.New("db down")}
	catalog := &stubCatalog{err: errors.New("catalog down")}

	r := NewResolver(curated, catalog, zerolog.Nop())
	pool := r.Resolve(context.Background(), Request{})

	require.NotEmpty(t, pool, "built-in set keeps the game playable")
	for _, q := range pool {
		assert.NotEmpty(t, q.ID)
		assert.NotEmpty(t, q.Text)
		assert.NotEmpty(t, q.Answer)
	}
}

func TestResolveWithoutAnySources(t *testing.T) {
	r := NewResolver(nil, nil, zerolog.Nop())
	pool := r.Resolve(context.Background(), Request{})
	assert.NotEmpty(t, pool)
}

func TestResolveUnmatchedSubjectsFallBackToFullBuiltinSet(t *testing.T) {
	r := NewResolver(nil, nil, zerolog.Nop())
	pool := r.Resolve(context.Background(), Request{Subjects: []string{"astrology"}})
	assert.Len(t, pool, len(builtinQuestions), "no match must not yield an unplayable empty pool")
}

func TestResolveTruncatesToRequestedCount(t *testing.T) {
	r := NewResolver(nil, nil, zerolog.Nop())
	pool := r.Resolve(context.Background(), Request{Count: 2})
	assert.Len(t, pool, 2)
}

func TestResolveCountLargerThanPool(t *testing.T) {
	r := NewResolver(nil, nil, zerolog.Nop())
	pool := r.Resolve(context.Background(), Request{Count: 1000})
	assert.Len(t, pool, len(builtinQuestions))
}

func TestResolveMembershipIsDeterministic(t *testing.T) {
	catalog := &stubCatalog{nodes: map[string]map[string]CatalogQuestion{
		"science": {
			"q1": {QuestionID: "cat-1", Text: "t", Answer: "a"},
			"q2": {QuestionID: "cat-2", Text: "t", Answer: "a"},
		},
	}}
	r := NewResolver(nil, catalog, zerolog.Nop())

	first := ids(r.Resolve(context.Background(), Request{Subjects: []string{"science", "理科"}}))
	second := ids(r.Resolve(context.Background(), Request{Subjects: []string{"science", "理科"}}))
	assert.ElementsMatch(t, first, second, "same inputs, same membership, order may differ")
}

func TestNormalizeCatalogGeneratesIDs(t *testing.T) {
	generated := 0
	q := normalizeCatalog("science", "science", CatalogQuestion{Text: "t", Answer: "a"}, &generated)
	assert.Equal(t, "q_science_1", q.ID)

	q = normalizeCatalog("science", "science", CatalogQuestion{ID: "legacy", Text: "t", Answer: "a"}, &generated)
	assert.Equal(t, "legacy", q.ID)
}

func TestNormalizeCatalogSelectable(t *testing.T) {
	generated := 0
	q := normalizeCatalog("math", "mathematics", CatalogQuestion{
		QuestionID: "m1",
		Text:       "t",
		Answer:     "a",
		Options:    []string{"a", "", "b"},
	}, &generated)
	assert.True(t, q.IsSelectable)
	assert.Equal(t, []string{"a", "b"}, q.Options, "empty option strings are dropped")

	q = normalizeCatalog("math", "mathematics", CatalogQuestion{QuestionID: "m2", Text: "t", Answer: "a"}, &generated)
	assert.False(t, q.IsSelectable)
	assert.Nil(t, q.Options)
}

func TestBuiltinSeedSet(t *testing.T) {
	first := Builtin()
	require.NotEmpty(t, first)

	seen := map[string]bool{}
	for _, q := range first {
		assert.NotEmpty(t, q.ID)
		assert.NotEmpty(t, q.Answer)
		assert.False(t, seen[q.ID], "duplicate builtin id %s", q.ID)
		seen[q.ID] = true
	}

	// Callers get a copy; mutating it must not poison the fallback set.
	first[0].Answer = "tampered"
	assert.NotEqual(t, "tampered", Builtin()[0].Answer)
}

func TestSubjectMatches(t *testing.T) {
	assert.True(t, subjectMatches("国語", []string{"japanese"}), "node keys cover their display names")
	assert.True(t, subjectMatches("国語", []string{"国語"}))
	assert.False(t, subjectMatches("国語", []string{"english", "数学"}))
}
