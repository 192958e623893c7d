// Package repository stores markets, stalls and ratings in Postgres for the
// self-hosted backend.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/lopperater/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Markets *MarketsRepository
	Stalls  *StallsRepository
	Ratings *RatingsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Markets: &MarketsRepository{pool: pool},
		Stalls:  &StallsRepository{pool: pool},
		Ratings: &RatingsRepository{pool: pool},
	}
}
