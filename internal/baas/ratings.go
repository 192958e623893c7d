package baas

import (
	"context"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/rating"
)

type ratingData struct {
	StallID      string  `json:"stallId"`
	UserID       string  `json:"userId"`
	Selection    float64 `json:"selection"`
	Friendliness float64 `json:"friendliness"`
	Creativity   float64 `json:"creativity"`
	Comment      *string `json:"comment,omitempty"`
}

// CreateRating stores a rating. The BaaS assigns its id and creation time.
func (c *Client) CreateRating(ctx context.Context, payload domain.RatingPayload) (domain.Rating, error) {
	if err := rating.ValidatePayload(payload); err != nil {
		return domain.Rating{}, err
	}
	var doc ratingDocument
	err := c.createDocument(ctx, "create rating", CollectionRatings, ratingData{
		StallID:      payload.StallID,
		UserID:       payload.UserID,
		Selection:    payload.Scores.Selection,
		Friendliness: payload.Scores.Friendliness,
		Creativity:   payload.Scores.Creativity,
		Comment:      payload.Comment,
	}, &doc)
	if err != nil {
		return domain.Rating{}, err
	}
	return doc.toDomain(), nil
}

// ListRatingsForStall returns every rating of a stall in server order.
func (c *Client) ListRatingsForStall(ctx context.Context, stallID string) ([]domain.Rating, error) {
	docs, err := listDocuments[ratingDocument](ctx, c, "list ratings", CollectionRatings, equalQuery("stallId", stallID))
	if err != nil {
		return nil, err
	}
	ratings := make([]domain.Rating, len(docs))
	for i, d := range docs {
		ratings[i] = d.toDomain()
	}
	return ratings, nil
}
