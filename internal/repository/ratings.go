package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// RatingsRepository stores immutable stall ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

const ratingColumns = `
    id,
    stall_id,
    user_id,
    selection,
    friendliness,
    creativity,
    comment,
    created_at
`

// Create inserts a rating. Scores outside [0,10] violate a CHECK constraint.
func (r *RatingsRepository) Create(ctx context.Context, payload domain.RatingPayload) (domain.Rating, error) {
	query := fmt.Sprintf(`
        INSERT INTO ratings (stall_id, user_id, selection, friendliness, creativity, comment)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, ratingColumns)

	row := r.pool.QueryRow(ctx, query, payload.StallID, payload.UserID,
		payload.Scores.Selection, payload.Scores.Friendliness, payload.Scores.Creativity, payload.Comment)
	return scanRating(row)
}

// ListByStall returns every rating of a stall, oldest first.
func (r *RatingsRepository) ListByStall(ctx context.Context, stallID string) ([]domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE stall_id = $1 ORDER BY created_at, id`, ratingColumns)
	rows, err := r.pool.Query(ctx, query, stallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ratings, nil
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var r domain.Rating
	err := row.Scan(
		&r.ID,
		&r.StallID,
		&r.UserID,
		&r.Selection,
		&r.Friendliness,
		&r.Creativity,
		&r.Comment,
		&r.CreatedAt,
	)
	if err != nil {
		return domain.Rating{}, err
	}
	return r, nil
}
