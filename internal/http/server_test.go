package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/config"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/state"
)

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func buildTestServer(tb testing.TB, health domain.HealthChecker) (*Server, *state.Store) {
	tb.Helper()
	cfg := config.Config{
		OpsPort:          "0",
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}
	st := state.New(state.Options{Logger: zerolog.Nop()})
	return New(cfg, health, st, zerolog.Nop()), st
}

func seed(st *state.Store) {
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	st.SetMarkets([]domain.Market{
		{ID: "aarhus", Name: "Remisen", Location: domain.Location{Coordinates: domain.Coordinates{Latitude: 56.1629, Longitude: 10.2039}, City: "Aarhus"}, StartDate: start, EndDate: start},
		{ID: "kbh", Name: "Israels Plads", Location: domain.Location{Coordinates: domain.Coordinates{Latitude: 55.6838, Longitude: 12.5690}, City: "København"}, StartDate: start, EndDate: start},
	})
	phone := "22334455"
	st.SetStalls([]domain.Stall{{
		ID:       "s1",
		MarketID: "kbh",
		Name:     "Retro Rita",
		Phone:    &phone,
		Ratings: []domain.Rating{
			{ID: "r1", StallID: "s1", Scores: domain.Scores{Selection: 8, Friendliness: 7, Creativity: 9}},
			{ID: "r2", StallID: "s1", Scores: domain.Scores{Selection: 4, Friendliness: 5, Creativity: 7}},
		},
		AverageRatings: domain.AverageRatings{Selection: 6, Friendliness: 6, Creativity: 8, Overall: 6.6666666667},
	}})
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := buildTestServer(t, healthFunc(func(context.Context) error { return nil }))
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	srv, _ = buildTestServer(t, healthFunc(func(context.Context) error { return errors.New("down") }))
	if rec := do(t, srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with failing backend = %d", rec.Code)
	}

	srv, _ = buildTestServer(t, nil)
	if rec := do(t, srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz without backend = %d", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := buildTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics body missing runtime collectors")
	}
}

func TestStateRanksMarketsByDistance(t *testing.T) {
	srv, st := buildTestServer(t, nil)
	seed(st)

	rec := do(t, srv, http.MethodPut, "/state/location", `{"latitude": 55.6761, "longitude": 12.5683}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set location = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state = %d", rec.Code)
	}
	var body struct {
		Version      uint64              `json:"version"`
		Submission   string              `json:"submission"`
		UserLocation *domain.Coordinates `json:"userLocation"`
		Markets      []struct {
			ID            string   `json:"id"`
			Distance      *float64 `json:"distance"`
			DistanceLabel string   `json:"distanceLabel"`
		} `json:"markets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(body.Markets) != 2 || body.Markets[0].ID != "kbh" {
		t.Fatalf("markets not ranked by distance: %+v", body.Markets)
	}
	if body.Markets[0].Distance == nil || !strings.HasSuffix(body.Markets[0].DistanceLabel, "m") || strings.HasSuffix(body.Markets[0].DistanceLabel, "km") {
		t.Fatalf("missing distance for nearest market: %+v", body.Markets[0])
	}
	if !strings.HasSuffix(body.Markets[1].DistanceLabel, "km") {
		t.Fatalf("far market label = %q", body.Markets[1].DistanceLabel)
	}
	if body.UserLocation == nil || body.Submission != "idle" {
		t.Fatalf("unexpected snapshot fields: %+v", body)
	}
}

func TestMarketsFilter(t *testing.T) {
	srv, st := buildTestServer(t, nil)
	seed(st)

	rec := do(t, srv, http.MethodGet, "/state/markets?q=aarhus", "")
	var markets []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &markets); err != nil {
		t.Fatalf("decode markets: %v", err)
	}
	if len(markets) != 1 || markets[0]["id"] != "aarhus" {
		t.Fatalf("filter by city failed: %v", markets)
	}
	if _, ok := markets[0]["distance"]; ok {
		t.Fatalf("distance present without user location")
	}
}

func TestStallDetails(t *testing.T) {
	srv, st := buildTestServer(t, nil)
	seed(st)

	rec := do(t, srv, http.MethodGet, "/state/stalls/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stall = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode stall: %v", err)
	}
	if body["phoneFormatted"] != "22 33 44 55" {
		t.Fatalf("phoneFormatted = %v", body["phoneFormatted"])
	}
	if body["overallMean"] != 6.67 {
		t.Fatalf("overallMean = %v, want 6.67", body["overallMean"])
	}
	if body["encouragement"] == "" {
		t.Fatalf("missing encouragement")
	}

	if rec := do(t, srv, http.MethodGet, "/state/stalls/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown stall = %d", rec.Code)
	}
}

func TestSetLocationValidation(t *testing.T) {
	srv, st := buildTestServer(t, nil)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"latitude":`, http.StatusUnprocessableEntity},
		{"empty", ``, http.StatusUnprocessableEntity},
		{"wrong type", `{"latitude": "north"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"lat": 1}`, http.StatusBadRequest},
		{"half", `{"latitude": 55}`, http.StatusUnprocessableEntity},
		{"out of range", `{"latitude": 91, "longitude": 0}`, http.StatusUnprocessableEntity},
		{"clear", `{}`, http.StatusNoContent},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, srv, http.MethodPut, "/state/location", tt.body); rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
	if st.Snapshot().UserLocation != nil {
		t.Fatalf("location should be cleared")
	}
}
