package postgres

import (
	"context"
	"fmt"

	"quiz-lobby-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PoolLoader loads the question bank from Postgres, one row per question.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPools(ctx context.Context) (domain.QuestionPools, error) {
	rows, err := l.pool.Query(ctx, `SELECT category, text, answer, COALESCE(image, '') FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	pools := make(domain.QuestionPools)
	for rows.Next() {
		var category string
		var q domain.Question
		if err := rows.Scan(&category, &q.Text, &q.Answer, &q.Image); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		cat := domain.Category(category)
		pools[cat] = append(pools[cat], q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return pools, nil
}
