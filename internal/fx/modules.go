package fx

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/robalobadob/superghost/internal/config"
	"github.com/robalobadob/superghost/internal/database"
	"github.com/robalobadob/superghost/internal/httpserver"
	"github.com/robalobadob/superghost/internal/logger"
	"github.com/robalobadob/superghost/internal/notify"
	"github.com/robalobadob/superghost/internal/service"
	"github.com/robalobadob/superghost/internal/stats"
	"github.com/robalobadob/superghost/internal/store"
	"github.com/robalobadob/superghost/internal/words"
)

// ProvideDatabase opens the results database and closes it on shutdown.
func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	db, err := database.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
	return db, nil
}

// ProvideValidator picks the remote dictionary or the offline list.
func ProvideValidator(cfg *config.Config, logger zerolog.Logger) (words.Validator, error) {
	if cfg.DictionaryMode == config.DictionaryLocal {
		v, err := words.LoadListValidator(cfg.WordsFile)
		if err != nil {
			return nil, err
		}
		logger.Info().Int("words", v.Len()).Msg("using offline word list")
		return v, nil
	}
	return words.NewDictionaryClient(words.DictionaryOptions{
		BaseURL: cfg.DictionaryURL,
		Retries: cfg.LookupRetries,
		Backoff: cfg.LookupBackoff,
		Timeout: cfg.LookupTimeout,
	}, logger), nil
}

// ProvidePublisher returns the local hub, or a Redis relay in front of it
// when REDIS_ADDR is set.
func ProvidePublisher(lc fx.Lifecycle, cfg *config.Config, hub *notify.Hub, logger zerolog.Logger) (notify.Publisher, error) {
	if cfg.RedisAddr == "" {
		return hub, nil
	}
	client, err := notify.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	relay := notify.NewRedisRelay(client, hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := relay.Run(ctx); err != nil {
					logger.Error().Err(err).Msg("redis relay stopped")
				}
			}()
			logger.Info().Str("addr", cfg.RedisAddr).Msg("redis relay started")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return client.Close()
		},
	})
	return relay, nil
}

// ProvideRecorder exposes the stats store to the service.
func ProvideRecorder(st *stats.Store) service.Recorder { return st }

// ProvideStatsReader exposes the stats store to the HTTP layer.
func ProvideStatsReader(st *stats.Store) httpserver.StatsReader { return st }

func ProvideService(
	registry *store.Registry,
	validator words.Validator,
	publisher notify.Publisher,
	recorder service.Recorder,
	cfg *config.Config,
	logger zerolog.Logger,
) *service.Service {
	return service.New(registry, validator, publisher, recorder, service.Options{
		MoveTimeout:           cfg.MoveTimeout,
		OpenMatchTTL:          cfg.OpenMatchTTL,
		FinishedMatchTTL:      cfg.FinishedMatchTTL,
		EnforceWordCompletion: cfg.EnforceWordCompletion,
	}, logger)
}

// ProvideSweeper schedules the timeout sweep for the app's lifetime.
func ProvideSweeper(lc fx.Lifecycle, svc *service.Service, cfg *config.Config, logger zerolog.Logger) (*service.Sweeper, error) {
	sw, err := service.NewSweeper(svc, cfg.SweepInterval, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return sw.Start() },
		OnStop:  func(context.Context) error { return sw.Stop() },
	})
	return sw, nil
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	// storage
	fx.Provide(ProvideDatabase),
	fx.Provide(stats.NewStore),
	fx.Provide(ProvideRecorder),
	fx.Provide(ProvideStatsReader),
	fx.Provide(store.NewRegistry),
	// dictionary
	fx.Provide(ProvideValidator),
	// fanout
	fx.Provide(notify.NewHub),
	fx.Provide(ProvidePublisher),
	// svc
	fx.Provide(ProvideService),
	fx.Provide(ProvideSweeper),
	// server
	fx.Provide(httpserver.New),
)
