package question

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/rkatarai/hayaoshi/internal/game"
)

// CuratedSource is the optional Postgres-backed question table.
type CuratedSource interface {
	FetchBySubjects(ctx context.Context, subjects []string, limit int) ([]game.Question, error)
}

// CatalogSource is the remote HTTP catalog.
type CatalogSource interface {
	Fetch(ctx context.Context) (map[string]map[string]CatalogQuestion, error)
}

// Resolver assembles the ordered question pool for one match, merging the
// curated table, the remote catalog and the built-in fallback set. Priority:
// curated, then remote, then built-in; earlier sources win id collisions.
type Resolver struct {
	curated CuratedSource
	catalog CatalogSource
	logger  zerolog.Logger
}

// NewResolver creates a pool resolver. Both sources may be nil; the built-in
// set alone is always enough to play.
func NewResolver(curated CuratedSource, catalog CatalogSource, logger zerolog.Logger) *Resolver {
	return &Resolver{
		curated: curated,
		catalog: catalog,
		logger:  logger,
	}
}

const curatedFetchLimit = 200

// Resolve produces a shuffled, truncated pool. Every failure path degrades to
// fallback content rather than erroring: a match must always have questions.
// Membership is deterministic for identical inputs; only the order varies.
func (r *Resolver) Resolve(ctx context.Context, req Request) []game.Question {
	subjects := req.Subjects
	if len(subjects) == 0 {
		subjects = Subjects()
	}

	seen := make(map[string]bool)
	var merged []game.Question
	add := func(q game.Question) {
		if q.ID == "" || seen[q.ID] {
			return
		}
		seen[q.ID] = true
		merged = append(merged, q)
	}

	if r.curated != nil {
		rows, err := r.curated.FetchBySubjects(ctx, subjects, curatedFetchLimit)
		if err != nil {
			r.logger.Warn().Err(err).Msg("curated question fetch failed, continuing without it")
		}
		for _, q := range rows {
			add(q)
		}
	}

	for _, q := range r.fetchCatalog(ctx, subjects) {
		add(q)
	}

	for _, q := range builtinQuestions {
		if subjectMatches(q.Subject, subjects) {
			add(q)
		}
	}

	if len(merged) == 0 {
		// Nothing matched the requested subjects; use the whole built-in set
		// rather than producing an unplayable match.
		r.logger.Warn().Strs("subjects", subjects).Msg("no questions matched, using full built-in set")
		merged = append(merged, builtinQuestions...)
	}

	shufflePool(merged)
	if req.Count > 0 && req.Count < len(merged) {
		merged = merged[:req.Count]
	}
	return merged
}

// fetchCatalog pulls and normalizes the remote catalog; any failure is an
// empty contribution.
func (r *Resolver) fetchCatalog(ctx context.Context, subjects []string) []game.Question {
	if r.catalog == nil {
		return nil
	}
	nodes, err := r.catalog.Fetch(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("remote catalog fetch failed, continuing without it")
		return nil
	}

	var out []game.Question
	generated := 0
	for node, records := range nodes {
		subject := nodeSubject(node)
		if !subjectMatches(subject, subjects) {
			continue
		}
		for _, rec := range records {
			out = append(out, normalizeCatalog(node, subject, rec, &generated))
		}
	}
	return out
}

// normalizeCatalog converts a raw catalog record into the uniform question
// shape. Records without an id of their own get one generated, unique within
// this fetch.
func normalizeCatalog(node, subject string, rec CatalogQuestion, generated *int) game.Question {
	id := rec.QuestionID
	if id == "" {
		id = rec.ID
	}
	if id == "" {
		*generated++
		id = fmt.Sprintf("q_%s_%d", node, *generated)
	}

	options := make([]string, 0, len(rec.Options))
	for _, opt := range rec.Options {
		if opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) == 0 {
		options = nil
	}

	return game.Question{
		ID:           id,
		Text:         rec.Text,
		Answer:       rec.Answer,
		Subject:      subject,
		Grade:        rec.Grade,
		Options:      options,
		IsSelectable: len(options) > 0,
	}
}

// shufflePool permutes the pool in place with an unbiased shuffle.
func shufflePool(pool []game.Question) {
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
}
