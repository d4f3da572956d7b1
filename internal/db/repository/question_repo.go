package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkatarai/hayaoshi/internal/game"
)

// QuestionRepository reads the curated question table. The curated tier is
// optional infrastructure: the pool resolver treats any failure here as an
// empty contribution.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// FetchBySubjects returns curated questions for the given subject display
// names, capped at limit.
func (r *QuestionRepository) FetchBySubjects(ctx context.Context, subjects []string, limit int) ([]game.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question_id, text, answer, subject, COALESCE(grade, ''), COALESCE(options, '{}'), is_selectable
		FROM questions
		WHERE subject = ANY($1)
		ORDER BY question_id
		LIMIT $2`, subjects, limit)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []game.Question
	for rows.Next() {
		var q game.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Answer, &q.Subject, &q.Grade, &q.Options, &q.IsSelectable); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(q.Options) == 0 {
			q.Options = nil
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// Insert stores a curated question (admin tooling writes through this).
func (r *QuestionRepository) Insert(ctx context.Context, q game.Question) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO questions (question_id, text, answer, subject, grade, options, is_selectable)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (question_id) DO UPDATE
		SET text = EXCLUDED.text,
		    answer = EXCLUDED.answer,
		    subject = EXCLUDED.subject,
		    grade = EXCLUDED.grade,
		    options = EXCLUDED.options,
		    is_selectable = EXCLUDED.is_selectable`,
		q.ID, q.Text, q.Answer, q.Subject, q.Grade, q.Options, q.IsSelectable)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}
