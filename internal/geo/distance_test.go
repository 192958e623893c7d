package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

func TestHaversineDistanceKm(t *testing.T) {
	assert.Equal(t, 0.0, HaversineDistanceKm(55.6761, 12.5683, 55.6761, 12.5683))

	// Copenhagen to Aarhus.
	d := HaversineDistanceKm(55.6761, 12.5683, 56.1629, 10.2039)
	assert.InDelta(t, 156.0, d, 2.0)
	assert.Equal(t, d, HaversineDistanceKm(56.1629, 10.2039, 55.6761, 12.5683))

	// One degree of latitude.
	assert.Equal(t, 111.19, HaversineDistanceKm(0, 0, 1, 0))
}

func TestHaversineRoundsToTwoDecimals(t *testing.T) {
	d := HaversineDistanceKm(55.6761, 12.5683, 55.6800, 12.5900)
	assert.Equal(t, round2(d), d)
}

func TestFormatDistance(t *testing.T) {
	tests := map[float64]string{
		0:      "0m",
		0.5:    "500m",
		0.0424: "42m",
		0.9996: "1km",
		1.0:    "1km",
		2.345:  "2.35km",
		2.5:    "2.5km",
		12.3:   "12.3km",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatDistance(in), "FormatDistance(%v)", in)
	}
}

func TestNonFiniteInput(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.True(t, math.IsNaN(HaversineDistanceKm(math.NaN(), 12, 55, 12)))
		assert.True(t, math.IsInf(round2(math.Inf(1)), 1))
	})
	assert.Equal(t, "?", FormatDistance(math.NaN()))
	assert.Equal(t, "?", FormatDistance(math.Inf(1)))
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Coordinates
		want bool
	}{
		{"copenhagen", domain.Coordinates{Latitude: 55.6761, Longitude: 12.5683}, true},
		{"corners", domain.Coordinates{Latitude: -90, Longitude: 180}, true},
		{"latitude too high", domain.Coordinates{Latitude: 90.5, Longitude: 0}, false},
		{"longitude too low", domain.Coordinates{Latitude: 0, Longitude: -181}, false},
		{"nan latitude", domain.Coordinates{Latitude: math.NaN(), Longitude: 12}, false},
		{"nan longitude", domain.Coordinates{Latitude: 55, Longitude: math.NaN()}, false},
		{"infinite", domain.Coordinates{Latitude: math.Inf(-1), Longitude: 12}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCoordinates(tt.in))
		})
	}
}

func market(id string, lat, lon float64) domain.Market {
	return domain.Market{ID: id, Location: domain.Location{Coordinates: domain.Coordinates{Latitude: lat, Longitude: lon}}}
}

func TestRankMarkets(t *testing.T) {
	markets := []domain.Market{
		market("far", 56.1629, 10.2039),
		market("near-a", 55.6800, 12.5700),
		market("mid", 55.4038, 10.4024),
		market("near-b", 55.6800, 12.5700),
	}

	t.Run("without location keeps order", func(t *testing.T) {
		ranked := RankMarkets(markets, nil)
		require.Len(t, ranked, 4)
		for i, r := range ranked {
			assert.Equal(t, markets[i].ID, r.ID)
			assert.Nil(t, r.Distance)
		}
	})

	t.Run("with location sorts stably", func(t *testing.T) {
		ranked := RankMarkets(markets, &domain.Coordinates{Latitude: 55.6761, Longitude: 12.5683})
		ids := make([]string, len(ranked))
		for i, r := range ranked {
			ids[i] = r.ID
			require.NotNil(t, r.Distance)
		}
		assert.Equal(t, []string{"near-a", "near-b", "mid", "far"}, ids)
		assert.LessOrEqual(t, *ranked[0].Distance, *ranked[2].Distance)
	})

	t.Run("unknown distances sort last", func(t *testing.T) {
		withBad := append([]domain.Market{market("bad", math.NaN(), 12)}, markets...)
		var ranked []domain.RankedMarket
		require.NotPanics(t, func() {
			ranked = RankMarkets(withBad, &domain.Coordinates{Latitude: 55.6761, Longitude: 12.5683})
		})
		require.Len(t, ranked, 5)
		assert.Equal(t, "near-a", ranked[0].ID)
		assert.Equal(t, "bad", ranked[4].ID)
	})

	assert.NotPanics(t, func() {
		RankMarkets(markets, &domain.Coordinates{Latitude: math.NaN(), Longitude: 12})
	})
	assert.Empty(t, RankMarkets(nil, &domain.Coordinates{}))
}
