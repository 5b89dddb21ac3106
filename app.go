package main

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"citycal/config"
	"citycal/db"
	"citycal/middleware"
	"citycal/ratelim"
	"citycal/rdx"
	"citycal/store"
)

// app holds the backing services shared by the serve and stats commands.
type app struct {
	cfg     *config.Config
	mongo   *db.MongoDB
	redis   *rdx.Conn
	events  store.EventStore
	users   store.UserStore
	revoked middleware.RevocationList
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		a.events = store.NewMemoryEventStore()
		a.users = store.NewMemoryUserStore()
	default:
		var m *db.MongoDB
		err := retryConnect(ctx, "mongo", func() (err error) {
			m, err = db.Connect(ctx, cfg.MongoURI, cfg.MongoDBName, cfg.MongoTimeout)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.mongo = m
		if err := m.EnsureIndexes(ctx); err != nil {
			a.close(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.MongoDBName).Msg("connected to mongo")
		a.events = store.NewMongoEventStore(m)
		a.users = store.NewMongoUserStore(m)
	}

	if cfg.RedisAddr == "" {
		a.revoked = middleware.NewMemoryRevocations()
		return a, nil
	}
	var conn *rdx.Conn
	err := retryConnect(ctx, "redis", func() (err error) {
		conn, err = rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return err
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	a.redis = conn
	a.events = store.NewCachedEventStore(a.events, conn, cfg.CalendarCacheTTL)
	a.revoked = rdx.NewRevokedTokens(conn)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("closing mongo")
		}
	}
}

// retryConnect retries op with exponential backoff until it succeeds, ctx ends
// or twenty seconds pass.
func retryConnect(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 20 * time.Second
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Warn().Err(err).Str("dependency", name).Dur("retryIn", next).Msg("connection failed, retrying")
	})
}

// newScheduler registers the periodic housekeeping jobs. The caller starts it.
func newScheduler(a *app, rateLimiter *ratelim.RateLimiter) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", rateLimiter.Cleanup); err != nil {
		return nil, fmt.Errorf("schedule rate limiter cleanup: %w", err)
	}
	if mem, ok := a.revoked.(*middleware.MemoryRevocations); ok {
		if _, err := c.AddFunc("@every 5m", mem.Sweep); err != nil {
			return nil, fmt.Errorf("schedule revocation sweep: %w", err)
		}
	}
	return c, nil
}
