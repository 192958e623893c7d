package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/baas"
	"github.com/Clark-Hu/lopperater/internal/cache"
	"github.com/Clark-Hu/lopperater/internal/config"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/events"
	"github.com/Clark-Hu/lopperater/internal/photos"
	"github.com/Clark-Hu/lopperater/internal/repository"
	"github.com/Clark-Hu/lopperater/internal/session"
	"github.com/Clark-Hu/lopperater/internal/state"
	"github.com/Clark-Hu/lopperater/internal/store"
)

// application is everything a command needs, built from the config once
// per invocation.
type application struct {
	cfg    config.Config
	logger zerolog.Logger
	out    io.Writer

	sessions *session.FileStore
	session  *session.Session

	backend domain.Backend
	baas    *baas.Client
	db      *store.Store
	redis   *redis.Client
	catalog *cache.CachedCatalog
	events  *events.RatingPublisher

	state  *state.Store
	photos *photos.Service
}

func newApplication(ctx context.Context, cfg config.Config, logger zerolog.Logger, out io.Writer) (*application, error) {
	app := &application{
		cfg:      cfg,
		logger:   logger,
		out:      out,
		sessions: session.NewFileStore(cfg.SessionFile),
	}

	s, err := app.sessions.Load(time.Now())
	switch {
	case err == nil:
		app.session = &s
	case errors.Is(err, session.ErrNoSession):
	case apperr.Is(err, apperr.TypeAuthentication):
		logger.Warn().Err(err).Msg("ignoring saved session")
	default:
		return nil, err
	}

	if err := app.openBackend(ctx); err != nil {
		app.Close()
		return nil, err
	}

	var catalog domain.MarketCatalog = app.backend
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("market cache unavailable, continuing without it")
		} else {
			app.redis = client
			mc := cache.NewMarketCache(client, time.Duration(cfg.MarketCacheTTLSecs)*time.Second)
			app.catalog = cache.NewCachedCatalog(app.backend, mc, logger)
			catalog = app.catalog
		}
	}

	var publisher state.RatingEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		app.events = events.NewRatingPublisher(events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic))
		publisher = app.events
	}

	app.state = state.New(state.Options{
		Ratings:       app.backend,
		Catalog:       catalog,
		Events:        publisher,
		SubmitTimeout: time.Duration(cfg.SubmitTimeoutSecs) * time.Second,
		Logger:        logger,
	})
	if app.session != nil {
		user := app.session.User()
		app.state.SetUser(&user)
	}

	if app.baas != nil {
		app.photos = photos.New(photos.Options{Storage: app.baas, Logger: logger})
	}
	return app, nil
}

func (a *application) openBackend(ctx context.Context) error {
	switch a.cfg.Backend {
	case config.BackendPostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := store.New(dbCtx, a.cfg.DBURL, store.Options{
			MaxConns:               int32(a.cfg.DBMaxConns),
			MinConns:               int32(a.cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(a.cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(a.cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(a.cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: a.cfg.DBStatementCache,
			Logger:                 a.logger,
		})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.db = st
		a.backend = repository.NewBackend(st)
		if err := prometheus.Register(st); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				a.logger.Warn().Err(err).Msg("pool metrics not registered")
			}
		}
	default:
		client, err := baas.NewClient(baas.Options{
			Endpoint:        a.cfg.BaaSEndpoint,
			ProjectID:       a.cfg.BaaSProjectID,
			APIKey:          a.cfg.BaaSAPIKey,
			DatabaseID:      a.cfg.BaaSDatabaseID,
			PhotoBucketID:   a.cfg.BaaSPhotoBucketID,
			PhotoFunctionID: a.cfg.BaaSPhotoFunctionID,
			Timeout:         time.Duration(a.cfg.BaaSTimeoutSecs) * time.Second,
			Logger:          a.logger,
		})
		if err != nil {
			return fmt.Errorf("init baas client: %w", err)
		}
		if a.session != nil {
			client.SetSessionToken(a.session.Token)
		}
		a.baas = client
		a.backend = client
	}
	return nil
}

// photoService fails for backends without file storage.
func (a *application) photoService() (*photos.Service, error) {
	if a.photos == nil {
		return nil, apperr.NewValidation(fmt.Sprintf("photos need the %s backend", config.BackendBaaS))
	}
	return a.photos, nil
}

func (a *application) requireUser() (domain.User, error) {
	if a.session == nil {
		return domain.User{}, apperr.NewAuthentication("not logged in, run `lopperater login` first")
	}
	return a.session.User(), nil
}

// Close releases connections. It is safe on a partly built application.
func (a *application) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close event publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close redis")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
