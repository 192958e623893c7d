package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

const EventRatingCreated = "RATING_CREATED"

// RatingEvent is the message body for rating activity. Messages are keyed
// by stall id so one stall's events stay ordered within a partition.
type RatingEvent struct {
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	RatingID   string                 `json:"rating_id"`
	StallID    string                 `json:"stall_id"`
	UserID     string                 `json:"user_id"`
	Scores     domain.Scores          `json:"scores"`
	Averages   *domain.AverageRatings `json:"averages,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// RatingPublisher turns ratings into events.
type RatingPublisher struct {
	publisher MessagePublisher
	now       func() time.Time
}

func NewRatingPublisher(publisher MessagePublisher) *RatingPublisher {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &RatingPublisher{publisher: publisher, now: time.Now}
}

// PublishRatingCreated emits RATING_CREATED. averages is the stall's new
// aggregate when the client has the stall loaded, nil otherwise.
func (p *RatingPublisher) PublishRatingCreated(ctx context.Context, rating domain.Rating, averages *domain.AverageRatings) error {
	event := RatingEvent{
		EventID:    uuid.NewString(),
		EventType:  EventRatingCreated,
		RatingID:   rating.ID,
		StallID:    rating.StallID,
		UserID:     rating.UserID,
		Scores:     rating.Scores,
		Averages:   averages,
		OccurredAt: p.now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal rating event: %w", err)
	}
	return p.publisher.PublishMessage(ctx, rating.StallID, body)
}

// Close releases the underlying publisher.
func (p *RatingPublisher) Close() error {
	return p.publisher.Close()
}
