package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/taiszocche92-glitch/backend/internal/cache"
	"github.com/taiszocche92-glitch/backend/internal/events"
	"github.com/taiszocche92-glitch/backend/internal/gateway"
	"github.com/taiszocche92-glitch/backend/internal/httpapi"
	"github.com/taiszocche92-glitch/backend/internal/profiles"
	"github.com/taiszocche92-glitch/backend/internal/protocol"
	"github.com/taiszocche92-glitch/backend/internal/registry"
	"github.com/taiszocche92-glitch/backend/internal/session"
	"github.com/taiszocche92-glitch/backend/internal/textgen"
)

type Services struct {
	Registry  *registry.Registry
	Store     *session.Store
	Publisher events.Publisher
	Engine    *protocol.Engine
	Gateway   *gateway.Handler
	Cache     *cache.Cache
	Profiles  *profiles.Repository
	API       *httpapi.API
}

func setupServices(config *Config, pool *pgxpool.Pool) *Services {
	// Wire up dependency injection chain:
	// registry + store → engine → gateway; repository + cache → REST API.
	clock := clockwork.NewRealClock()

	reg := registry.New()
	store := session.NewStore(clock, config.Session.MaxIdleAge)

	var publisher events.Publisher = events.Noop{}
	if config.NATS.URL != "" {
		p, err := events.NewNATSPublisher(config.NATS.URL, config.NATS.SubjectPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("event journal unavailable, continuing without it")
		} else {
			publisher = p
		}
	}

	engine := protocol.NewEngine(reg, store, publisher, clock, protocol.Config{
		DefaultDurationMinutes: config.Session.DefaultDurationMinutes,
		FrontendURL:            config.FrontendURL,
	})
	gw := gateway.NewHandler(gateway.DefaultConnectionConfig(), engine)

	redisCache := cache.New(cache.Config{
		Addr:          config.Redis.Addr,
		Password:      config.Redis.Password,
		DB:            config.Redis.DB,
		UserTTL:       cache.DefaultConfig().UserTTL,
		StationTTL:    cache.DefaultConfig().StationTTL,
		EditStatusTTL: cache.DefaultConfig().EditStatusTTL,
	})

	repo := profiles.NewRepository(pool)
	generator := textgen.NewClient(textgen.NewKeyManagerFromEnv(), textgen.DefaultConfig())

	api := httpapi.New(httpapi.Config{
		Environment:      config.Environment,
		AdminSecretToken: config.AdminSecretToken,
	}, repo, redisCache, generator, store, reg, gw)

	return &Services{
		Registry:  reg,
		Store:     store,
		Publisher: publisher,
		Engine:    engine,
		Gateway:   gw,
		Cache:     redisCache,
		Profiles:  repo,
		API:       api,
	}
}
