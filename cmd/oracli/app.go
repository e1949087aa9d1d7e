package main

import (
	"context"
	"os"

	"github.com/erikwco/oracli/v3"
	"github.com/erikwco/oracli/v3/catalog"
	"github.com/erikwco/oracli/v3/config"
	"github.com/erikwco/oracli/v3/metrics"
	"github.com/rs/zerolog"
)

type options struct {
	configFile string
	logLevel   string
}

// app is everything a command needs, opened from the config file
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	conn  *oracli.Connection
	pool  *oracli.Pool
	cache *catalog.Cache
}

func openApp(opts *options) (*app, error) {
	cfg, err := config.NewConfigFromFile(opts.configFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := oracli.NewLogger(os.Stderr, level, cfg.Log.Encoder)

	var conn *oracli.Connection
	if cfg.Database.URL != "" {
		conn, err = oracli.NewConnection(cfg.Database.URL, "oracli", cfg.Connection(), &log)
	} else {
		conn, err = oracli.NewConnectionWithParams(cfg.Database.Server, cfg.Database.Port,
			cfg.Database.User, cfg.Database.Password, cfg.Database.Service,
			cfg.Database.Options, cfg.Connection(), "oracli", &log)
	}
	if err != nil {
		return nil, err
	}

	metrics.RegisterMetrics()
	pool := oracli.NewPool("oracli", conn, cfg.Database.Sessions, &log)
	pool.OnChange(func(s oracli.PoolStats) {
		metrics.PoolInUseGauge.Set(float64(s.InUse))
	})
	cache := catalog.NewCache(catalog.NewReader(pool, cfg.Query.FetchBatch), cfg.Catalog.TTL.Duration)
	cache.OnLookup = metrics.ObserveCatalog

	return &app{cfg: cfg, log: log, conn: conn, pool: pool, cache: cache}, nil
}

// context returns a context bounded by the query timeout and carrying the
// logger
func (a *app) context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := a.log.WithContext(parent)
	if t := a.cfg.Query.Timeout.Duration; t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}

func (a *app) health(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.conn.Ping() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) Close() {
	a.pool.Close()
	a.conn.Close()
}
