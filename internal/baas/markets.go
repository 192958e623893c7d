package baas

import (
	"context"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

type stallData struct {
	MarketID    string   `json:"marketId"`
	VendorID    *string  `json:"vendorId,omitempty"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	PhotoIDs    []string `json:"photoIds"`
}

func (c *Client) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	docs, err := listDocuments[marketDocument](ctx, c, "list markets", CollectionMarkets)
	if err != nil {
		return nil, err
	}
	markets := make([]domain.Market, len(docs))
	for i, d := range docs {
		markets[i] = d.toDomain()
	}
	return markets, nil
}

func (c *Client) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	var doc marketDocument
	if err := c.getDocument(ctx, "get market", CollectionMarkets, id, &doc); err != nil {
		return domain.Market{}, err
	}
	return doc.toDomain(), nil
}

func (c *Client) CreateMarket(ctx context.Context, draft domain.MarketDraft) (domain.Market, error) {
	var doc marketDocument
	err := c.createDocument(ctx, "create market", CollectionMarkets, marketData{
		Name:        draft.Name,
		Description: draft.Description,
		Latitude:    draft.Location.Latitude,
		Longitude:   draft.Location.Longitude,
		Address:     draft.Location.Address,
		City:        draft.Location.City,
		PostalCode:  draft.Location.PostalCode,
		StartDate:   draft.StartDate.UTC(),
		EndDate:     draft.EndDate.UTC(),
		IsActive:    draft.IsActive,
	}, &doc)
	if err != nil {
		return domain.Market{}, err
	}
	return doc.toDomain(), nil
}

// ListStalls returns the stalls of a market without their ratings.
func (c *Client) ListStalls(ctx context.Context, marketID string) ([]domain.Stall, error) {
	docs, err := listDocuments[stallDocument](ctx, c, "list stalls", CollectionStalls, equalQuery("marketId", marketID))
	if err != nil {
		return nil, err
	}
	stalls := make([]domain.Stall, len(docs))
	for i, d := range docs {
		stalls[i] = d.toDomain()
	}
	return stalls, nil
}

func (c *Client) CreateStall(ctx context.Context, payload domain.StallPayload) (domain.Stall, error) {
	var doc stallDocument
	err := c.createDocument(ctx, "create stall", CollectionStalls, stallData{
		MarketID:    payload.MarketID,
		VendorID:    payload.VendorID,
		Name:        payload.Name,
		Description: payload.Description,
		Phone:       payload.Phone,
		PhotoIDs:    []string{},
	}, &doc)
	if err != nil {
		return domain.Stall{}, err
	}
	return doc.toDomain(), nil
}
