package domain

import "time"

// Coordinates is a WGS84 point, typically the user's location.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Location describes where a market takes place.
type Location struct {
	Coordinates
	Address    string  `json:"address" validate:"required"`
	City       string  `json:"city" validate:"required"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// Market represents a flea market event.
type Market struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Location    Location  `json:"location"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	IsActive    bool      `json:"isActive"`
	Stalls      []Stall   `json:"stalls,omitempty"`
}

// MarketDraft carries the fields needed to create a market.
type MarketDraft struct {
	Name        string    `validate:"required"`
	Description *string
	Location    Location
	StartDate   time.Time `validate:"required"`
	EndDate     time.Time `validate:"required,gtefield=StartDate"`
	IsActive    bool
}

// RankedMarket pairs a market with its distance from the user, when known.
type RankedMarket struct {
	Market
	Distance *float64 `json:"distance,omitempty"`
}

// Stall is a single seller's table at a market.
type Stall struct {
	ID             string         `json:"id"`
	MarketID       string         `json:"marketId"`
	VendorID       *string        `json:"vendorId,omitempty"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	Phone          *string        `json:"phone,omitempty"`
	PhotoIDs       []string       `json:"photoIds"`
	Ratings        []Rating       `json:"ratings"`
	AverageRatings AverageRatings `json:"averageRatings"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// StallDraft is the caller-facing input for a new stall.
type StallDraft struct {
	MarketID    string
	Name        string
	Description *string
	Phone       *string
}

// StallPayload is the create request sent to a MarketCatalog. Phone, when set,
// is already normalised.
type StallPayload struct {
	MarketID    string  `json:"marketId"`
	VendorID    *string `json:"vendorId,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}
