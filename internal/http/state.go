package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/geo"
	"github.com/Clark-Hu/lopperater/internal/rating"
	"github.com/Clark-Hu/lopperater/internal/state"
)

const maxRequestBody = 1 << 16

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type marketResponse struct {
	domain.RankedMarket
	DistanceLabel string `json:"distanceLabel,omitempty"`
}

type stateResponse struct {
	state.Snapshot
	Markets []marketResponse `json:"markets"`
}

type stallResponse struct {
	domain.Stall
	OverallMean    float64 `json:"overallMean"`
	PhoneFormatted string  `json:"phoneFormatted,omitempty"`
	Encouragement  string  `json:"encouragement,omitempty"`
}

func toMarketResponses(ranked []domain.RankedMarket) []marketResponse {
	out := make([]marketResponse, len(ranked))
	for i, m := range ranked {
		out[i] = marketResponse{RankedMarket: m}
		if m.Distance != nil {
			out[i].DistanceLabel = geo.FormatDistance(*m.Distance)
		}
	}
	return out
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	s.respondJSON(w, http.StatusOK, stateResponse{
		Snapshot: snap,
		Markets:  toMarketResponses(s.state.VisibleMarkets("")),
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, toMarketResponses(s.state.VisibleMarkets(r.URL.Query().Get("q"))))
}

func (s *Server) handleStall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "stallID")
	for _, stall := range s.state.Snapshot().Stalls {
		if stall.ID != id {
			continue
		}
		resp := stallResponse{Stall: stall, OverallMean: rating.OverallMean(stall.Ratings)}
		if stall.Phone != nil {
			resp.PhoneFormatted = rating.FormatPhoneNumber(*stall.Phone)
		}
		if len(stall.Ratings) > 0 {
			avg := stall.AverageRatings
			resp.Encouragement = rating.EncouragementMessage(domain.Scores{
				Selection:    avg.Selection,
				Friendliness: avg.Friendliness,
				Creativity:   avg.Creativity,
			})
		}
		s.respondJSON(w, http.StatusOK, resp)
		return
	}
	s.respondError(w, http.StatusNotFound, "NOT_FOUND", "stall is not loaded")
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Latitude == nil && req.Longitude == nil {
		s.state.SetUserLocation(nil)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "latitude and longitude must be given together")
		return
	}
	loc := domain.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !geo.ValidCoordinates(loc) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "coordinates out of range")
		return
	}
	s.state.SetUserLocation(&loc)
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Code: code, Message: message})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}
