package rating

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

func newRating(sel, friend, creat float64) domain.Rating {
	return domain.Rating{Scores: domain.Scores{Selection: sel, Friendliness: friend, Creativity: creat}}
}

func TestComputeAveragesEmpty(t *testing.T) {
	assert.Equal(t, domain.AverageRatings{}, ComputeAverages(nil))
	assert.Equal(t, domain.AverageRatings{}, ComputeAverages([]domain.Rating{}))
}

func TestComputeAverages(t *testing.T) {
	one := []domain.Rating{newRating(8, 7, 9)}
	assert.Equal(t, domain.AverageRatings{Selection: 8, Friendliness: 7, Creativity: 9, Overall: 8}, ComputeAverages(one))

	two := append(one, newRating(4, 5, 6))
	assert.Equal(t, domain.AverageRatings{Selection: 6, Friendliness: 6, Creativity: 7.5, Overall: 6.5}, ComputeAverages(two))
}

func TestComputeAveragesOrderIndependent(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	ratings := make([]domain.Rating, 40)
	for i := range ratings {
		ratings[i] = newRating(rnd.Float64()*10, rnd.Float64()*10, rnd.Float64()*10)
	}
	want := ComputeAverages(ratings)

	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Rating(nil), ratings...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, ComputeAverages(shuffled))
	}
}

func TestComputeAveragesDoesNotReorderInput(t *testing.T) {
	ratings := []domain.Rating{newRating(9, 1, 5), newRating(1, 9, 5)}
	ComputeAverages(ratings)
	assert.Equal(t, 9.0, ratings[0].Selection)
}

func TestOverallMean(t *testing.T) {
	ratings := []domain.Rating{newRating(7, 7, 8), newRating(6, 6, 6)}
	// (7.333... + 6) / 2 = 6.666...
	assert.Equal(t, 6.67, OverallMean(ratings))
	assert.Equal(t, 0.0, OverallMean(nil))
}

func TestEncouragementMessage(t *testing.T) {
	assert.Contains(t, EncouragementMessage(domain.Scores{Selection: 8, Friendliness: 8, Creativity: 8}), "Fantastisk")
	assert.Contains(t, EncouragementMessage(domain.Scores{Selection: 6, Friendliness: 6, Creativity: 6}), "God bod")
	assert.Contains(t, EncouragementMessage(domain.Scores{Selection: 4, Friendliness: 4, Creativity: 4}), "potentiale")
	assert.Contains(t, EncouragementMessage(domain.Scores{Selection: 1, Friendliness: 2, Creativity: 3}), "Tak for at deltage")
}
