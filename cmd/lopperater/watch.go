package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Clark-Hu/lopperater/internal/cache"
	"github.com/Clark-Hu/lopperater/internal/domain"
	httpserver "github.com/Clark-Hu/lopperater/internal/http"
	"github.com/Clark-Hu/lopperater/internal/photos"
	"github.com/Clark-Hu/lopperater/internal/scheduler"
	"github.com/Clark-Hu/lopperater/internal/state"
)

func watchCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "keep markets fresh, follow photo processing and serve /healthz, /metrics and /state",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat"},
			&cli.Float64Flag{Name: "lon"},
			&cli.StringSliceFlag{Name: "photo", Usage: "photo id to follow until processed (repeatable)"},
		},
		Action: r.withApp(func(c *cli.Context, app *application) error {
			loc, err := locationFlags(c)
			if err != nil {
				return err
			}
			app.state.SetUserLocation(loc)
			return runWatch(c.Context, app, c.StringSlice("photo"))
		}),
	}
}

// marketRefresher reloads markets into the store, going around the cache
// when there is one.
type marketRefresher struct {
	cache *cache.CachedCatalog
	state *state.Store
}

func (m marketRefresher) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	if m.cache == nil {
		return m.state.LoadMarkets(ctx)
	}
	markets, err := m.cache.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	m.state.SetMarkets(markets)
	return markets, nil
}

func runWatch(ctx context.Context, app *application, photoIDs []string) error {
	sched := scheduler.New(app.logger)
	if err := sched.Add(scheduler.MarketRefresh(app.cfg.RefreshSchedule, marketRefresher{cache: app.catalog, state: app.state})); err != nil {
		return err
	}

	if svc, err := app.photoService(); err == nil {
		tracker := photos.NewTracker(svc)
		for _, id := range photoIDs {
			photo, err := svc.Status(ctx, id)
			if err != nil {
				app.logger.Warn().Err(err).Str("photo_id", id).Msg("cannot follow photo")
				continue
			}
			tracker.Track(photo)
		}
		if err := sched.Add(scheduler.PhotoPoll(app.cfg.PhotoPollSchedule, tracker, app.logger)); err != nil {
			return err
		}
	} else if len(photoIDs) > 0 {
		app.logger.Warn().Err(err).Msg("photo polling disabled")
	}

	server := httpserver.New(app.cfg, app.backend, app.state, app.logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error().Err(err).Msg("ops server error")
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
