package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// fakeBackend is an in-memory RatingStore and MarketCatalog.
type fakeBackend struct {
	mu      sync.Mutex
	nextID  int
	ratings map[string][]domain.Rating
	stalls  map[string][]domain.Stall
	markets []domain.Market

	createDelay time.Duration
	createErr   error
	listErr     error

	inFlight    int32
	maxInFlight int32
	creates     int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ratings: make(map[string][]domain.Rating),
		stalls:  make(map[string][]domain.Stall),
	}
}

func (f *fakeBackend) CreateRating(ctx context.Context, payload domain.RatingPayload) (domain.Rating, error) {
	atomic.AddInt32(&f.creates, 1)
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.maxInFlight)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.maxInFlight, peak, cur) {
			break
		}
	}

	if f.createDelay > 0 {
		select {
		case <-time.After(f.createDelay):
		case <-ctx.Done():
			return domain.Rating{}, ctx.Err()
		}
	}
	if f.createErr != nil {
		return domain.Rating{}, f.createErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := domain.Rating{
		ID:        fmt.Sprintf("rating-%d", f.nextID),
		StallID:   payload.StallID,
		UserID:    payload.UserID,
		Scores:    payload.Scores,
		Comment:   payload.Comment,
		CreatedAt: time.Now().UTC(),
	}
	f.ratings[payload.StallID] = append(f.ratings[payload.StallID], r)
	return r, nil
}

func (f *fakeBackend) ListRatingsForStall(ctx context.Context, stallID string) ([]domain.Rating, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Rating{}, f.ratings[stallID]...), nil
}

func (f *fakeBackend) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Market(nil), f.markets...), nil
}

func (f *fakeBackend) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, fmt.Errorf("market %s not found", id)
}

func (f *fakeBackend) CreateMarket(ctx context.Context, draft domain.MarketDraft) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := domain.Market{
		ID:          fmt.Sprintf("market-%d", f.nextID),
		Name:        draft.Name,
		Description: draft.Description,
		Location:    draft.Location,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
		IsActive:    draft.IsActive,
	}
	f.markets = append(f.markets, m)
	return m, nil
}

func (f *fakeBackend) ListStalls(ctx context.Context, marketID string) ([]domain.Stall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Stall(nil), f.stalls[marketID]...), nil
}

func (f *fakeBackend) CreateStall(ctx context.Context, payload domain.StallPayload) (domain.Stall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st := domain.Stall{
		ID:          fmt.Sprintf("stall-%d", f.nextID),
		MarketID:    payload.MarketID,
		VendorID:    payload.VendorID,
		Name:        payload.Name,
		Description: payload.Description,
		Phone:       payload.Phone,
	}
	f.stalls[payload.MarketID] = append(f.stalls[payload.MarketID], st)
	return st, nil
}
