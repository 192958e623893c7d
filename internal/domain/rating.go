package domain

import "time"

// Scores holds the three rating criteria, each on a 0-10 scale.
type Scores struct {
	Selection    float64 `json:"selection" validate:"required,gte=0,lte=10"`
	Friendliness float64 `json:"friendliness" validate:"required,gte=0,lte=10"`
	Creativity   float64 `json:"creativity" validate:"required,gte=0,lte=10"`
}

// Mean returns the rating's own three-field mean.
func (s Scores) Mean() float64 {
	return (s.Selection + s.Friendliness + s.Creativity) / 3
}

// Rating represents a single user's rating for a stall. Ratings are never
// mutated after creation.
type Rating struct {
	ID        string    `json:"id"`
	StallID   string    `json:"stallId"`
	UserID    string    `json:"userId"`
	Scores              `json:"scores"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingDraft is what a caller submits; the submitting user is attached later.
// Its scores must be set, so zero is rejected.
type RatingDraft struct {
	StallID string  `json:"stallId" validate:"required"`
	Scores  Scores  `json:"scores"`
	Comment *string `json:"comment,omitempty"`
}

// RatingPayload is the create request sent to a RatingStore. Its scores are
// checked against [0,10] only.
type RatingPayload struct {
	StallID string  `json:"stallId" validate:"required"`
	UserID  string  `json:"userId" validate:"required"`
	Scores  Scores  `json:"scores"`
	Comment *string `json:"comment,omitempty"`
}

// AverageRatings is derived from a stall's ratings and never persisted.
type AverageRatings struct {
	Selection    float64 `json:"selection"`
	Friendliness float64 `json:"friendliness"`
	Creativity   float64 `json:"creativity"`
	Overall      float64 `json:"overall"`
}
