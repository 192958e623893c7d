package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// MarketsRepository persists flea markets.
type MarketsRepository struct {
	pool *pgxpool.Pool
}

const marketColumns = `
    id,
    name,
    description,
    latitude,
    longitude,
    address,
    city,
    postal_code,
    start_date,
    end_date,
    is_active
`

// Create inserts a market and returns the stored row.
func (r *MarketsRepository) Create(ctx context.Context, draft domain.MarketDraft) (domain.Market, error) {
	query := fmt.Sprintf(`
        INSERT INTO markets (name, description, latitude, longitude, address, city, postal_code, start_date, end_date, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING %s
    `, marketColumns)

	loc := draft.Location
	row := r.pool.QueryRow(ctx, query, draft.Name, draft.Description, loc.Latitude, loc.Longitude,
		loc.Address, loc.City, loc.PostalCode, draft.StartDate, draft.EndDate, draft.IsActive)
	return scanMarket(row)
}

// GetByID fetches a market by its identifier.
func (r *MarketsRepository) GetByID(ctx context.Context, id string) (domain.Market, error) {
	query := fmt.Sprintf(`SELECT %s FROM markets WHERE id = $1`, marketColumns)
	market, err := scanMarket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, ErrNotFound
		}
		return domain.Market{}, err
	}
	return market, nil
}

// List returns every market, soonest first.
func (r *MarketsRepository) List(ctx context.Context) ([]domain.Market, error) {
	query := fmt.Sprintf(`SELECT %s FROM markets ORDER BY start_date, id`, marketColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markets := make([]domain.Market, 0)
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return markets, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Location.Latitude,
		&m.Location.Longitude,
		&m.Location.Address,
		&m.Location.City,
		&m.Location.PostalCode,
		&m.StartDate,
		&m.EndDate,
		&m.IsActive,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}
