package domain

import "context"

// RatingStore persists ratings. CreateRating assigns ID and CreatedAt.
type RatingStore interface {
	CreateRating(ctx context.Context, payload RatingPayload) (Rating, error)
	ListRatingsForStall(ctx context.Context, stallID string) ([]Rating, error)
}

// MarketCatalog serves markets and their stalls.
type MarketCatalog interface {
	ListMarkets(ctx context.Context) ([]Market, error)
	GetMarket(ctx context.Context, id string) (Market, error)
	CreateMarket(ctx context.Context, draft MarketDraft) (Market, error)
	ListStalls(ctx context.Context, marketID string) ([]Stall, error)
	CreateStall(ctx context.Context, payload StallPayload) (Stall, error)
}

// PhotoStorage uploads photos and drives their processing.
type PhotoStorage interface {
	UploadPhotoFile(ctx context.Context, upload PhotoUpload) (StoredFile, error)
	CreatePhotoRecord(ctx context.Context, photo Photo) (Photo, error)
	GetPhoto(ctx context.Context, id string) (Photo, error)
	StartPhotoProcessing(ctx context.Context, photo Photo) error
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backend is everything the client needs from a persistence collaborator.
type Backend interface {
	RatingStore
	MarketCatalog
	HealthChecker
}
