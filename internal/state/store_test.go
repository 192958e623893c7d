package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/rating"
)

var testUser = &domain.User{ID: "user-1", Name: "Karen", Email: "karen@example.dk"}

func newTestStore(t *testing.T, backend *fakeBackend, opts ...func(*Options)) *Store {
	t.Helper()
	o := Options{Ratings: backend, Catalog: backend, Logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func scores(sel, friend, creat float64) domain.Scores {
	return domain.Scores{Selection: sel, Friendliness: friend, Creativity: creat}
}

func TestAddRatingRecomputesAverages(t *testing.T) {
	backend := newFakeBackend()
	st := newTestStore(t, backend)
	st.SetUser(testUser)
	st.SetStalls([]domain.Stall{{ID: "s1", Name: "Retro Rita"}, {ID: "s2", Name: "Bøger"}})
	st.SetSelectedStall(&domain.Stall{ID: "s1", Name: "Retro Rita"})
	ctx := context.Background()

	first, err := st.AddRating(ctx, domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "user-1", first.UserID)

	snap := st.Snapshot()
	assert.Equal(t, domain.AverageRatings{Selection: 8, Friendliness: 7, Creativity: 9, Overall: 8}, snap.Stalls[0].AverageRatings)
	assert.Equal(t, SubmissionSuccess, snap.Submission)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)

	_, err = st.AddRating(ctx, domain.RatingDraft{StallID: "s1", Scores: scores(4, 5, 6)})
	require.NoError(t, err)

	snap = st.Snapshot()
	want := domain.AverageRatings{Selection: 6, Friendliness: 6, Creativity: 7.5, Overall: 6.5}
	assert.Equal(t, want, snap.Stalls[0].AverageRatings)
	assert.Len(t, snap.Stalls[0].Ratings, 2)
	require.NotNil(t, snap.SelectedStall)
	assert.Equal(t, want, snap.SelectedStall.AverageRatings)
	assert.Empty(t, snap.Stalls[1].Ratings)
	assert.Equal(t, domain.AverageRatings{}, snap.Stalls[1].AverageRatings)
}

func TestAddRatingUnauthenticated(t *testing.T) {
	backend := newFakeBackend()
	st := newTestStore(t, backend)
	st.SetStalls([]domain.Stall{{ID: "s1"}})

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeAuthentication))

	snap := st.Snapshot()
	assert.Equal(t, SubmissionFailed, snap.Submission)
	assert.NotEmpty(t, snap.Error)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Stalls[0].Ratings)
	assert.Zero(t, backend.creates)
}

func TestAddRatingValidationLeavesStateUntouched(t *testing.T) {
	st := newTestStore(t, newFakeBackend())
	st.SetUser(testUser)
	before := st.Snapshot()

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(11, 7, 9)})
	var rangeErr *rating.OutOfRangeError
	require.ErrorAs(t, err, &rangeErr)

	_, err = st.AddRating(context.Background(), domain.RatingDraft{Scores: scores(5, 5, 5)})
	var missingErr *rating.MissingFieldError
	require.ErrorAs(t, err, &missingErr)

	assert.Equal(t, before, st.Snapshot())
}

func TestAddRatingCollaboratorFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("connection reset by peer")
	st := newTestStore(t, backend)
	st.SetUser(testUser)
	st.SetStalls([]domain.Stall{{ID: "s1", Ratings: []domain.Rating{{ID: "old", StallID: "s1", Scores: scores(5, 5, 5)}}}})
	before := st.Snapshot().Stalls

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeRemote))

	snap := st.Snapshot()
	assert.Equal(t, before, snap.Stalls)
	assert.Equal(t, SubmissionFailed, snap.Submission)
	assert.Equal(t, apperr.UserMessage(err), snap.Error)
}

func TestAddRatingKeepsClassifiedCollaboratorErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = apperr.NewMalformedResponse("rating document missing $id", nil)
	st := newTestStore(t, backend)
	st.SetUser(testUser)

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	assert.True(t, apperr.Is(err, apperr.TypeMalformedResponse))
}

func TestAddRatingTimeout(t *testing.T) {
	backend := newFakeBackend()
	backend.createDelay = time.Second
	st := newTestStore(t, backend, func(o *Options) { o.SubmitTimeout = 20 * time.Millisecond })
	st.SetUser(testUser)
	st.SetStalls([]domain.Stall{{ID: "s1"}})

	start := time.Now()
	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	snap := st.Snapshot()
	assert.Equal(t, SubmissionFailed, snap.Submission)
	assert.Empty(t, snap.Stalls[0].Ratings)
}

func TestConcurrentRatingsForOneStallAreSerialised(t *testing.T) {
	backend := newFakeBackend()
	backend.createDelay = 2 * time.Millisecond
	st := newTestStore(t, backend)
	st.SetUser(testUser)
	st.SetStalls([]domain.Stall{{ID: "s1"}})

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := float64(i%10 + 1)
			_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(v, v, v)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap := st.Snapshot()
	require.Len(t, snap.Stalls[0].Ratings, n)
	assert.Equal(t, int32(1), backend.maxInFlight)
	stored, _ := backend.ListRatingsForStall(context.Background(), "s1")
	assert.Equal(t, rating.ComputeAverages(stored), snap.Stalls[0].AverageRatings)
	assert.InDelta(t, 5.5, snap.Stalls[0].AverageRatings.Overall, 1e-9)
	assert.False(t, snap.IsLoading)
	assert.Zero(t, st.stallLocks.size())
}

func TestSubscribeSeesSubmission(t *testing.T) {
	st := newTestStore(t, newFakeBackend())
	st.SetUser(testUser)
	st.SetStalls([]domain.Stall{{ID: "s1"}})

	updates, cancel := st.Subscribe()
	defer cancel()

	initial := <-updates
	assert.Equal(t, SubmissionIdle, initial.Submission)

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Submission == SubmissionSuccess {
				assert.Equal(t, 8.0, snap.Stalls[0].AverageRatings.Overall)
				return
			}
		case <-deadline:
			t.Fatal("no success snapshot delivered")
		}
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	st := newTestStore(t, newFakeBackend())
	updates, cancel := st.Subscribe()
	<-updates
	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
	st.SetError("after cancel")
}

func TestSnapshotIsACopy(t *testing.T) {
	st := newTestStore(t, newFakeBackend())
	st.SetStalls([]domain.Stall{{ID: "s1", PhotoIDs: []string{"p1"}}})

	snap := st.Snapshot()
	snap.Stalls[0].PhotoIDs[0] = "mutated"
	snap.Stalls[0].Name = "mutated"

	again := st.Snapshot()
	assert.Equal(t, "p1", again.Stalls[0].PhotoIDs[0])
	assert.Empty(t, again.Stalls[0].Name)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishRatingCreated(ctx context.Context, r domain.Rating, averages *domain.AverageRatings) error {
	return m.Called(r.StallID, averages).Error(0)
}

func TestAddRatingPublishesEvent(t *testing.T) {
	pub := new(mockPublisher)
	want := &domain.AverageRatings{Selection: 8, Friendliness: 7, Creativity: 9, Overall: 8}
	pub.On("PublishRatingCreated", "s1", want).Return(errors.New("broker down")).Once()

	st := newTestStore(t, newFakeBackend(), func(o *Options) { o.Events = pub })
	st.SetUser(testUser)
	st.SetStalls([]domain.Stall{{ID: "s1"}})

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "s1", Scores: scores(8, 7, 9)})
	require.NoError(t, err, "event failures must not fail the submission")
	pub.AssertExpectations(t)
}

func TestAddRatingForUnloadedStall(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishRatingCreated", "elsewhere", (*domain.AverageRatings)(nil)).Return(nil).Once()
	backend := newFakeBackend()
	st := newTestStore(t, backend, func(o *Options) { o.Events = pub })
	st.SetUser(testUser)

	_, err := st.AddRating(context.Background(), domain.RatingDraft{StallID: "elsewhere", Scores: scores(3, 3, 3)})
	require.NoError(t, err)
	assert.Empty(t, st.Snapshot().Stalls)
	assert.Len(t, backend.ratings["elsewhere"], 1)
	pub.AssertExpectations(t)
}

func TestLoadStallsComputesAverages(t *testing.T) {
	backend := newFakeBackend()
	backend.stalls["m1"] = []domain.Stall{{ID: "s1", MarketID: "m1"}, {ID: "s2", MarketID: "m1"}}
	backend.ratings["s1"] = []domain.Rating{{ID: "r1", StallID: "s1", Scores: scores(8, 7, 9)}, {ID: "r2", StallID: "s1", Scores: scores(4, 5, 6)}}
	st := newTestStore(t, backend)

	stalls, err := st.LoadStalls(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, stalls, 2)

	snap := st.Snapshot()
	assert.Equal(t, domain.AverageRatings{Selection: 6, Friendliness: 6, Creativity: 7.5, Overall: 6.5}, snap.Stalls[0].AverageRatings)
	assert.Equal(t, domain.AverageRatings{}, snap.Stalls[1].AverageRatings)
	assert.False(t, snap.IsLoading)
}

func TestLoadStallsFailureSetsError(t *testing.T) {
	backend := newFakeBackend()
	backend.stalls["m1"] = []domain.Stall{{ID: "s1"}}
	backend.listErr = errors.New("503")
	st := newTestStore(t, backend)

	_, err := st.LoadStalls(context.Background(), "m1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeRemote))
	assert.NotEmpty(t, st.Snapshot().Error)
	assert.False(t, st.Snapshot().IsLoading)
}

func TestRefreshStallRatings(t *testing.T) {
	backend := newFakeBackend()
	backend.ratings["s1"] = []domain.Rating{{ID: "r1", StallID: "s1", Scores: scores(8, 7, 9)}}
	st := newTestStore(t, backend)
	st.SetStalls([]domain.Stall{{ID: "s1"}})

	ratings, avg, err := st.RefreshStallRatings(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
	assert.Equal(t, 8.0, avg.Overall)
	assert.Equal(t, avg, st.Snapshot().Stalls[0].AverageRatings)

	_, _, err = st.RefreshStallRatings(context.Background(), "")
	var missingErr *rating.MissingFieldError
	assert.ErrorAs(t, err, &missingErr)
}

func TestLoadMarketsAndVisibleMarkets(t *testing.T) {
	backend := newFakeBackend()
	backend.markets = []domain.Market{
		{ID: "aarhus", Name: "Loppetorv", Location: domain.Location{Coordinates: domain.Coordinates{Latitude: 56.1629, Longitude: 10.2039}, City: "Aarhus"}},
		{ID: "kbh", Name: "Israels Plads", Location: domain.Location{Coordinates: domain.Coordinates{Latitude: 55.6838, Longitude: 12.5690}, City: "København"}},
		{ID: "odense", Name: "Odense Loppemarked", Location: domain.Location{Coordinates: domain.Coordinates{Latitude: 55.4038, Longitude: 10.4024}, City: "Odense"}},
	}
	st := newTestStore(t, backend)

	_, err := st.LoadMarkets(context.Background())
	require.NoError(t, err)

	ids := func(ranked []domain.RankedMarket) []string {
		out := make([]string, len(ranked))
		for i, r := range ranked {
			out[i] = r.ID
		}
		return out
	}

	assert.Equal(t, []string{"aarhus", "kbh", "odense"}, ids(st.VisibleMarkets("")))

	st.SetUserLocation(&domain.Coordinates{Latitude: 55.6761, Longitude: 12.5683})
	assert.Equal(t, []string{"kbh", "odense", "aarhus"}, ids(st.VisibleMarkets("")))
	assert.Equal(t, []string{"odense", "aarhus"}, ids(st.VisibleMarkets("LOPPE")))
	assert.Equal(t, []string{"kbh"}, ids(st.VisibleMarkets("købe")))
}

func TestCreateStall(t *testing.T) {
	backend := newFakeBackend()
	st := newTestStore(t, backend)
	phone := "+45 22 33 44 55"

	_, err := st.CreateStall(context.Background(), domain.StallDraft{MarketID: "m1", Name: "Retro", Phone: &phone})
	assert.True(t, apperr.Is(err, apperr.TypeAuthentication))

	st.SetUser(testUser)
	stall, err := st.CreateStall(context.Background(), domain.StallDraft{MarketID: "m1", Name: "Retro", Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, stall.Phone)
	assert.Equal(t, "22334455", *stall.Phone)
	require.NotNil(t, stall.VendorID)
	assert.Equal(t, "user-1", *stall.VendorID)
	assert.Len(t, st.Snapshot().Stalls, 1)

	bad := "123"
	_, err = st.CreateStall(context.Background(), domain.StallDraft{MarketID: "m1", Name: "Retro", Phone: &bad})
	var phoneErr *rating.InvalidPhoneError
	assert.ErrorAs(t, err, &phoneErr)
}

func TestCreateMarket(t *testing.T) {
	st := newTestStore(t, newFakeBackend())
	st.SetUser(testUser)
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	market, err := st.CreateMarket(context.Background(), domain.MarketDraft{
		Name:      "Sommerloppen",
		Location:  domain.Location{Address: "Torvet 1", City: "Roskilde", Coordinates: domain.Coordinates{Latitude: 55.64, Longitude: 12.08}},
		StartDate: start,
		EndDate:   start.Add(6 * time.Hour),
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, market.ID)
	assert.Len(t, st.Snapshot().Markets, 1)
}

func TestSettersBumpVersion(t *testing.T) {
	st := newTestStore(t, newFakeBackend())
	v0 := st.Snapshot().Version
	st.SetLoading(true)
	st.SetError("boom")
	snap := st.Snapshot()
	assert.Equal(t, v0+2, snap.Version)
	assert.True(t, snap.IsLoading)
	assert.Equal(t, "boom", snap.Error)
}
