package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// StallsRepository persists stalls within markets.
type StallsRepository struct {
	pool *pgxpool.Pool
}

const stallColumns = `
    id,
    market_id,
    vendor_id,
    name,
    description,
    phone,
    photo_ids,
    created_at,
    updated_at
`

// Create inserts a stall. The market must exist.
func (r *StallsRepository) Create(ctx context.Context, payload domain.StallPayload) (domain.Stall, error) {
	query := fmt.Sprintf(`
        INSERT INTO stalls (market_id, vendor_id, name, description, phone)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, stallColumns)

	row := r.pool.QueryRow(ctx, query, payload.MarketID, payload.VendorID, payload.Name, payload.Description, payload.Phone)
	return scanStall(row)
}

// GetByID fetches a stall by its identifier.
func (r *StallsRepository) GetByID(ctx context.Context, id string) (domain.Stall, error) {
	query := fmt.Sprintf(`SELECT %s FROM stalls WHERE id = $1`, stallColumns)
	stall, err := scanStall(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stall{}, ErrNotFound
		}
		return domain.Stall{}, err
	}
	return stall, nil
}

// ListByMarket returns a market's stalls in creation order.
func (r *StallsRepository) ListByMarket(ctx context.Context, marketID string) ([]domain.Stall, error) {
	query := fmt.Sprintf(`SELECT %s FROM stalls WHERE market_id = $1 ORDER BY created_at, id`, stallColumns)
	rows, err := r.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stalls := make([]domain.Stall, 0)
	for rows.Next() {
		stall, err := scanStall(rows)
		if err != nil {
			return nil, err
		}
		stalls = append(stalls, stall)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stalls, nil
}

func scanStall(row pgx.Row) (domain.Stall, error) {
	var s domain.Stall
	err := row.Scan(
		&s.ID,
		&s.MarketID,
		&s.VendorID,
		&s.Name,
		&s.Description,
		&s.Phone,
		&s.PhotoIDs,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return domain.Stall{}, err
	}
	if s.PhotoIDs == nil {
		s.PhotoIDs = []string{}
	}
	return s, nil
}
