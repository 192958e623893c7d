// Package state is the client-side store of markets, stalls and ratings.
// All fields change through setters or command methods; readers get copies.
package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/geo"
	"github.com/Clark-Hu/lopperater/internal/metrics"
	"github.com/Clark-Hu/lopperater/internal/rating"
)

const (
	defaultSubmitTimeout = 10 * time.Second
	eventPublishTimeout  = 5 * time.Second
	stallRatingFetches   = 4
)

// RatingEventPublisher receives successfully created ratings.
type RatingEventPublisher interface {
	PublishRatingCreated(ctx context.Context, rating domain.Rating, averages *domain.AverageRatings) error
}

// Options wires a Store to its collaborators.
type Options struct {
	Ratings       domain.RatingStore
	Catalog       domain.MarketCatalog
	Events        RatingEventPublisher
	SubmitTimeout time.Duration
	Logger        zerolog.Logger
}

// Store owns the client state.
type Store struct {
	mu             sync.RWMutex
	version        uint64
	user           *domain.User
	markets        []domain.Market
	selectedMarket *domain.Market
	stalls         []domain.Stall
	selectedStall  *domain.Stall
	isLoading      bool
	inFlight       int
	errMsg         string
	userLocation   *domain.Coordinates
	submission     SubmissionStatus

	stallLocks *keyedMutex

	subsMu  sync.Mutex
	subs    map[int]*subscriber
	nextSub int

	ratings       domain.RatingStore
	catalog       domain.MarketCatalog
	events        RatingEventPublisher
	submitTimeout time.Duration
	logger        zerolog.Logger
}

type subscriber struct {
	ch   chan Snapshot
	last uint64
}

// New constructs an empty store.
func New(opts Options) *Store {
	timeout := opts.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Store{
		submission:    SubmissionIdle,
		stallLocks:    newKeyedMutex(),
		subs:          make(map[int]*subscriber),
		ratings:       opts.Ratings,
		catalog:       opts.Catalog,
		events:        opts.Events,
		submitTimeout: timeout,
		logger:        opts.Logger,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:        s.version,
		User:           copyUser(s.user),
		Markets:        copyMarkets(s.markets),
		SelectedMarket: copyMarket(s.selectedMarket),
		Stalls:         copyStalls(s.stalls),
		SelectedStall:  copyStall(s.selectedStall),
		IsLoading:      s.isLoading,
		Error:          s.errMsg,
		UserLocation:   copyCoordinates(s.userLocation),
		Submission:     s.submission,
	}
}

// Subscribe returns a channel receiving the current snapshot and every later
// change. A slow reader only ever sees the newest pending snapshot. cancel
// closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	sub := &subscriber{ch: make(chan Snapshot, 1)}

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	sub.deliver(s.Snapshot())
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(sub.ch)
			s.subsMu.Unlock()
		})
	}
	return sub.ch, cancel
}

func (sub *subscriber) deliver(snap Snapshot) {
	if snap.Version < sub.last {
		return
	}
	sub.last = snap.Version
	for {
		select {
		case sub.ch <- snap:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// update applies fn under the write lock and notifies subscribers.
func (s *Store) update(fn func()) Snapshot {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.deliver(snap)
	}
	s.subsMu.Unlock()
	return snap
}

func (s *Store) SetUser(user *domain.User) {
	s.update(func() { s.user = copyUser(user) })
}

func (s *Store) SetMarkets(markets []domain.Market) {
	s.update(func() { s.markets = copyMarkets(markets) })
}

func (s *Store) SetSelectedMarket(market *domain.Market) {
	s.update(func() { s.selectedMarket = copyMarket(market) })
}

func (s *Store) SetStalls(stalls []domain.Stall) {
	s.update(func() { s.stalls = copyStalls(stalls) })
}

func (s *Store) SetSelectedStall(stall *domain.Stall) {
	s.update(func() { s.selectedStall = copyStall(stall) })
}

// AddStall appends a stall to the loaded list.
func (s *Store) AddStall(stall domain.Stall) {
	s.update(func() { s.stalls = append(s.stalls, *copyStall(&stall)) })
}

func (s *Store) SetLoading(loading bool) {
	s.update(func() { s.isLoading = loading })
}

func (s *Store) SetError(msg string) {
	s.update(func() { s.errMsg = msg })
}

func (s *Store) SetUserLocation(location *domain.Coordinates) {
	s.update(func() { s.userLocation = copyCoordinates(location) })
}

// VisibleMarkets filters loaded markets by a case-insensitive name or city
// substring and ranks them by distance from the user's location.
func (s *Store) VisibleMarkets(query string) []domain.RankedMarket {
	s.mu.RLock()
	markets := copyMarkets(s.markets)
	location := copyCoordinates(s.userLocation)
	s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	filtered := markets[:0]
	for _, m := range markets {
		if query == "" ||
			strings.Contains(strings.ToLower(m.Name), query) ||
			strings.Contains(strings.ToLower(m.Location.City), query) {
			filtered = append(filtered, m)
		}
	}
	return geo.RankMarkets(filtered, location)
}

// beginRequest marks a collaborator request in flight and clears the error.
func (s *Store) beginRequest(submission bool) {
	s.update(func() {
		s.inFlight++
		s.isLoading = true
		s.errMsg = ""
		if submission {
			s.submission = SubmissionSubmitting
		}
	})
	metrics.StoreLoading.Set(1)
}

// endRequest finishes a request started with beginRequest. apply runs under
// the same lock when err is nil.
func (s *Store) endRequest(submission bool, err error, apply func()) {
	snap := s.update(func() {
		s.inFlight--
		s.isLoading = s.inFlight > 0
		if err != nil {
			s.errMsg = apperr.UserMessage(err)
			if submission {
				s.submission = SubmissionFailed
			}
			return
		}
		if apply != nil {
			apply()
		}
		if submission {
			s.submission = SubmissionSuccess
		}
	})
	if !snap.IsLoading {
		metrics.StoreLoading.Set(0)
	}
}

func (s *Store) currentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

// LoadMarkets fetches all markets from the catalog.
func (s *Store) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	s.beginRequest(false)
	markets, err := s.catalog.ListMarkets(ctx)
	if err != nil {
		err = apperr.FromCollaborator(ctx, "list markets", err)
		s.logger.Error().Err(err).Msg("load markets failed")
		s.endRequest(false, err, nil)
		return nil, err
	}
	s.endRequest(false, nil, func() { s.markets = copyMarkets(markets) })
	return markets, nil
}

// LoadStalls fetches a market's stalls with their ratings and averages.
func (s *Store) LoadStalls(ctx context.Context, marketID string) ([]domain.Stall, error) {
	s.beginRequest(false)
	stalls, err := s.fetchStalls(ctx, marketID)
	if err != nil {
		err = apperr.FromCollaborator(ctx, "list stalls", err)
		s.logger.Error().Err(err).Str("market_id", marketID).Msg("load stalls failed")
		s.endRequest(false, err, nil)
		return nil, err
	}
	s.endRequest(false, nil, func() { s.stalls = copyStalls(stalls) })
	return stalls, nil
}

func (s *Store) fetchStalls(ctx context.Context, marketID string) ([]domain.Stall, error) {
	stalls, err := s.catalog.ListStalls(ctx, marketID)
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stallRatingFetches)
	for i := range stalls {
		i := i
		g.Go(func() error {
			ratings, err := s.ratings.ListRatingsForStall(gctx, stalls[i].ID)
			if err != nil {
				return err
			}
			stalls[i].Ratings = ratings
			stalls[i].AverageRatings = rating.ComputeAverages(ratings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stalls, nil
}

// CreateMarket validates and creates a market, then adds it to the list.
func (s *Store) CreateMarket(ctx context.Context, draft domain.MarketDraft) (domain.Market, error) {
	if err := rating.ValidateMarketDraft(draft); err != nil {
		return domain.Market{}, err
	}
	s.beginRequest(false)
	if s.currentUser() == nil {
		err := apperr.NewAuthentication("creating a market requires a session")
		s.endRequest(false, err, nil)
		return domain.Market{}, err
	}
	market, err := s.catalog.CreateMarket(ctx, draft)
	if err != nil {
		err = apperr.FromCollaborator(ctx, "create market", err)
		s.endRequest(false, err, nil)
		return domain.Market{}, err
	}
	s.endRequest(false, nil, func() { s.markets = append(s.markets, *copyMarket(&market)) })
	return market, nil
}

// CreateStall validates and creates a stall owned by the current user.
func (s *Store) CreateStall(ctx context.Context, draft domain.StallDraft) (domain.Stall, error) {
	draft, err := rating.NormalizeStallDraft(draft)
	if err != nil {
		return domain.Stall{}, err
	}
	s.beginRequest(false)
	user := s.currentUser()
	if user == nil {
		err := apperr.NewAuthentication("creating a stall requires a session")
		s.endRequest(false, err, nil)
		return domain.Stall{}, err
	}
	vendorID := user.ID
	stall, err := s.catalog.CreateStall(ctx, domain.StallPayload{
		MarketID:    draft.MarketID,
		VendorID:    &vendorID,
		Name:        draft.Name,
		Description: draft.Description,
		Phone:       draft.Phone,
	})
	if err != nil {
		err = apperr.FromCollaborator(ctx, "create stall", err)
		s.endRequest(false, err, nil)
		return domain.Stall{}, err
	}
	s.endRequest(false, nil, func() { s.stalls = append(s.stalls, *copyStall(&stall)) })
	return stall, nil
}

// AddRating submits a rating for the current user. Submissions for one stall
// are applied one at a time; on success the stall's ratings and averages are
// updated, on failure the stall data is left untouched.
func (s *Store) AddRating(ctx context.Context, draft domain.RatingDraft) (domain.Rating, error) {
	if err := rating.ValidateDraft(draft); err != nil {
		metrics.RatingSubmissions.WithLabelValues(outcome(err)).Inc()
		return domain.Rating{}, err
	}

	unlock, err := s.stallLocks.Lock(ctx, draft.StallID)
	if err != nil {
		err = apperr.FromCollaborator(ctx, "wait for pending submission", err)
		metrics.RatingSubmissions.WithLabelValues(outcome(err)).Inc()
		return domain.Rating{}, err
	}
	defer unlock()

	s.beginRequest(true)

	user := s.currentUser()
	if user == nil {
		err := apperr.NewAuthentication("rating requires a session")
		s.failSubmission(draft.StallID, err)
		return domain.Rating{}, err
	}

	payload := domain.RatingPayload{
		StallID: draft.StallID,
		UserID:  user.ID,
		Scores:  draft.Scores,
		Comment: draft.Comment,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	start := time.Now()
	created, err := s.ratings.CreateRating(callCtx, payload)
	metrics.RatingSubmitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		err = apperr.FromCollaborator(callCtx, "create rating", err)
		s.failSubmission(draft.StallID, err)
		return domain.Rating{}, err
	}

	var averages *domain.AverageRatings
	s.endRequest(true, nil, func() { averages = s.applyRatingLocked(created) })
	metrics.RatingSubmissions.WithLabelValues(outcome(nil)).Inc()
	s.logger.Info().
		Str("rating_id", created.ID).
		Str("stall_id", created.StallID).
		Msg("rating created")

	s.publishRatingCreated(ctx, created, averages)
	return created, nil
}

// applyRatingLocked appends r to its stall when loaded and returns the new
// averages, or nil when the stall is not loaded.
func (s *Store) applyRatingLocked(r domain.Rating) *domain.AverageRatings {
	var averages *domain.AverageRatings
	for i := range s.stalls {
		if s.stalls[i].ID != r.StallID {
			continue
		}
		s.stalls[i].Ratings = append(s.stalls[i].Ratings, r)
		s.stalls[i].AverageRatings = rating.ComputeAverages(s.stalls[i].Ratings)
		avg := s.stalls[i].AverageRatings
		averages = &avg
		break
	}
	if s.selectedStall != nil && s.selectedStall.ID == r.StallID {
		s.selectedStall.Ratings = append(s.selectedStall.Ratings, r)
		s.selectedStall.AverageRatings = rating.ComputeAverages(s.selectedStall.Ratings)
		if averages == nil {
			avg := s.selectedStall.AverageRatings
			averages = &avg
		}
	}
	return averages
}

func (s *Store) failSubmission(stallID string, err error) {
	s.endRequest(true, err, nil)
	metrics.RatingSubmissions.WithLabelValues(outcome(err)).Inc()
	s.logger.Warn().Err(err).Str("stall_id", stallID).Msg("rating submission failed")
}

func (s *Store) publishRatingCreated(ctx context.Context, r domain.Rating, averages *domain.AverageRatings) {
	if s.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.events.PublishRatingCreated(pubCtx, r, averages); err != nil {
		s.logger.Warn().Err(err).Str("rating_id", r.ID).Msg("publish rating event failed")
	}
}

// RefreshStallRatings re-reads a stall's ratings from the collaborator and
// recomputes its averages.
func (s *Store) RefreshStallRatings(ctx context.Context, stallID string) ([]domain.Rating, domain.AverageRatings, error) {
	if stallID == "" {
		return nil, domain.AverageRatings{}, &rating.MissingFieldError{Field: "stallId"}
	}
	unlock, err := s.stallLocks.Lock(ctx, stallID)
	if err != nil {
		return nil, domain.AverageRatings{}, apperr.FromCollaborator(ctx, "wait for pending submission", err)
	}
	defer unlock()

	s.beginRequest(false)
	ratings, err := s.ratings.ListRatingsForStall(ctx, stallID)
	if err != nil {
		err = apperr.FromCollaborator(ctx, "list ratings", err)
		s.endRequest(false, err, nil)
		return nil, domain.AverageRatings{}, err
	}
	averages := rating.ComputeAverages(ratings)
	s.endRequest(false, nil, func() {
		for i := range s.stalls {
			if s.stalls[i].ID == stallID {
				s.stalls[i].Ratings = append([]domain.Rating(nil), ratings...)
				s.stalls[i].AverageRatings = averages
			}
		}
		if s.selectedStall != nil && s.selectedStall.ID == stallID {
			s.selectedStall.Ratings = append([]domain.Rating(nil), ratings...)
			s.selectedStall.AverageRatings = averages
		}
	})
	return ratings, averages, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if t := apperr.TypeOf(err); t != "" {
		return strings.ToLower(string(t))
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "remote"
}
