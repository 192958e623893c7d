package state

import "github.com/Clark-Hu/lopperater/internal/domain"

// SubmissionStatus is the rating submission state machine:
// idle -> submitting -> success | failed.
type SubmissionStatus string

const (
	SubmissionIdle       SubmissionStatus = "idle"
	SubmissionSubmitting SubmissionStatus = "submitting"
	SubmissionSuccess    SubmissionStatus = "success"
	SubmissionFailed     SubmissionStatus = "failed"
)

// Snapshot is an immutable copy of the store. Version increases with every
// change.
type Snapshot struct {
	Version        uint64              `json:"version"`
	User           *domain.User        `json:"user,omitempty"`
	Markets        []domain.Market     `json:"markets"`
	SelectedMarket *domain.Market      `json:"selectedMarket,omitempty"`
	Stalls         []domain.Stall      `json:"stalls"`
	SelectedStall  *domain.Stall       `json:"selectedStall,omitempty"`
	IsLoading      bool                `json:"isLoading"`
	Error          string              `json:"error,omitempty"`
	UserLocation   *domain.Coordinates `json:"userLocation,omitempty"`
	Submission     SubmissionStatus    `json:"submission"`
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]domain.Role(nil), u.Roles...)
	return &c
}

func copyMarket(m *domain.Market) *domain.Market {
	if m == nil {
		return nil
	}
	c := *m
	c.Stalls = copyStalls(m.Stalls)
	return &c
}

func copyMarkets(in []domain.Market) []domain.Market {
	if in == nil {
		return nil
	}
	out := make([]domain.Market, len(in))
	for i := range in {
		out[i] = *copyMarket(&in[i])
	}
	return out
}

func copyStall(s *domain.Stall) *domain.Stall {
	if s == nil {
		return nil
	}
	c := *s
	c.PhotoIDs = append([]string(nil), s.PhotoIDs...)
	c.Ratings = append([]domain.Rating(nil), s.Ratings...)
	return &c
}

func copyStalls(in []domain.Stall) []domain.Stall {
	if in == nil {
		return nil
	}
	out := make([]domain.Stall, len(in))
	for i := range in {
		out[i] = *copyStall(&in[i])
	}
	return out
}

func copyCoordinates(c *domain.Coordinates) *domain.Coordinates {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
