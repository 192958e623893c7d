package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/metrics"
	"github.com/Clark-Hu/lopperater/internal/rating"
	"github.com/Clark-Hu/lopperater/internal/store"
)

const backendLabel = "postgres"

// Backend exposes the repositories as the persistence collaborator.
type Backend struct {
	repo   *Repository
	health domain.HealthChecker
}

// NewBackend wires repositories on top of st.
func NewBackend(st *store.Store) *Backend {
	return &Backend{repo: New(st), health: st}
}

func (b *Backend) CreateRating(ctx context.Context, payload domain.RatingPayload) (domain.Rating, error) {
	if err := rating.ValidatePayload(payload); err != nil {
		return domain.Rating{}, err
	}
	var out domain.Rating
	err := b.observe(ctx, "create rating", func() (err error) {
		out, err = b.repo.Ratings.Create(ctx, payload)
		return err
	})
	return out, err
}

func (b *Backend) ListRatingsForStall(ctx context.Context, stallID string) ([]domain.Rating, error) {
	var out []domain.Rating
	err := b.observe(ctx, "list ratings", func() (err error) {
		out, err = b.repo.Ratings.ListByStall(ctx, stallID)
		return err
	})
	return out, err
}

func (b *Backend) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market
	err := b.observe(ctx, "list markets", func() (err error) {
		out, err = b.repo.Markets.List(ctx)
		return err
	})
	return out, err
}

func (b *Backend) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	var out domain.Market
	err := b.observe(ctx, "get market", func() (err error) {
		out, err = b.repo.Markets.GetByID(ctx, id)
		return err
	})
	return out, err
}

func (b *Backend) CreateMarket(ctx context.Context, draft domain.MarketDraft) (domain.Market, error) {
	if err := rating.ValidateMarketDraft(draft); err != nil {
		return domain.Market{}, err
	}
	var out domain.Market
	err := b.observe(ctx, "create market", func() (err error) {
		out, err = b.repo.Markets.Create(ctx, draft)
		return err
	})
	return out, err
}

func (b *Backend) ListStalls(ctx context.Context, marketID string) ([]domain.Stall, error) {
	var out []domain.Stall
	err := b.observe(ctx, "list stalls", func() (err error) {
		out, err = b.repo.Stalls.ListByMarket(ctx, marketID)
		return err
	})
	return out, err
}

func (b *Backend) CreateStall(ctx context.Context, payload domain.StallPayload) (domain.Stall, error) {
	var out domain.Stall
	err := b.observe(ctx, "create stall", func() (err error) {
		out, err = b.repo.Stalls.Create(ctx, payload)
		return err
	})
	return out, err
}

func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.observe(ctx, "health", func() error { return b.health.HealthCheck(ctx) })
}

// observe records metrics for one call and maps its error into the
// collaborator taxonomy.
func (b *Backend) observe(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.CollaboratorDuration.WithLabelValues(backendLabel, op).Observe(time.Since(start).Seconds())
	metrics.CollaboratorRequests.WithLabelValues(backendLabel, op, metrics.Status(err)).Inc()
	return mapError(ctx, op, err)
}

func mapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return apperr.NewNotFound(op + ": not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "23503", "23502":
			return apperr.NewRemote(op+" rejected: "+pgErr.ConstraintName, err)
		}
	}
	return apperr.FromCollaborator(ctx, op, err)
}

var _ domain.Backend = (*Backend)(nil)
