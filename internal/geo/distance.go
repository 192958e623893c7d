// Package geo computes and formats distances between markets and the user.
package geo

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

const earthRadiusKm = 6371.0

// HaversineDistanceKm returns the great-circle distance between two points,
// rounded to two decimals.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return round2(earthRadiusKm * c)
}

// Distance is HaversineDistanceKm over two coordinate values.
func Distance(from, to domain.Coordinates) float64 {
	return HaversineDistanceKm(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// FormatDistance renders km as whole meters below one kilometre and as
// kilometres with at most two decimals otherwise.
func FormatDistance(km float64) string {
	if !finite(km) {
		return "?"
	}
	d := decimal.NewFromFloat(km)
	if km < 1 {
		meters := d.Mul(decimal.NewFromInt(1000)).Round(0)
		if meters.LessThan(decimal.NewFromInt(1000)) {
			return meters.String() + "m"
		}
	}
	return d.Round(2).String() + "km"
}

// ValidCoordinates reports whether c is a finite point on the globe.
func ValidCoordinates(c domain.Coordinates) bool {
	return finite(c.Latitude) && finite(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// RankMarkets attaches distances from `from` and stable-sorts nearest first.
// With no location the input order is kept and distances stay nil. Markets
// whose distance cannot be computed sort last.
func RankMarkets(markets []domain.Market, from *domain.Coordinates) []domain.RankedMarket {
	ranked := make([]domain.RankedMarket, len(markets))
	for i, m := range markets {
		ranked[i] = domain.RankedMarket{Market: m}
		if from != nil {
			dist := Distance(*from, m.Location.Coordinates)
			ranked[i].Distance = &dist
		}
	}
	if from == nil {
		return ranked
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := *ranked[i].Distance, *ranked[j].Distance
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a < b
	})
	return ranked
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	rounded, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return rounded
}
