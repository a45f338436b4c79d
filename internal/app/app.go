package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"example.com/pingpong-score/internal/auth"
	"example.com/pingpong-score/internal/config"
	"example.com/pingpong-score/internal/game"
	"example.com/pingpong-score/internal/metrics"
	"example.com/pingpong-score/internal/providers/gemini"
	"example.com/pingpong-score/internal/scoring"
	"example.com/pingpong-score/internal/voice"
)

const pingTimeout = 5 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	rdb     *redis.Client
	matches *game.MatchService

	srv *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// --- Snapshot store ---
	var (
		rdb     *redis.Client
		persist game.MatchPersistence = game.NewInMemoryMatchStore()
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
		}
		persist = game.NewRedisMatchStore(rdb, cfg.Redis.MatchTTL)
		log.Info("match snapshots stored in redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.MatchTTL)
	}

	// --- Voice ---
	var provider voice.Provider
	if cfg.Voice.Enabled {
		provider = gemini.NewProvider(gemini.Config{
			APIKey:  cfg.Voice.APIKey,
			BaseURL: cfg.Voice.BaseURL,
			Model:   cfg.Voice.Model,
		})
		log.Info("voice assistant enabled", "sample_rate", cfg.Voice.SampleRate)
	}

	// --- Game ---
	authSvc := auth.NewService([]byte(cfg.Auth.Secret))
	gameCfg := game.Config{
		Policy:          scoring.Policy{BestOf: cfg.Match.BestOf},
		Voice:           provider,
		VoiceSampleRate: cfg.Voice.SampleRate,
		ScorerTokenTTL:  cfg.Auth.TokenTTL,
	}
	matchSvc := game.NewMatchService(gameCfg, persist, log, m)
	gameSrv := game.NewServer(gameCfg, matchSvc, authSvc, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	gameSrv.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{cfg: cfg, log: log, rdb: rdb, matches: matchSvc, srv: srv}, nil
}

func (a *App) Handler() http.Handler { return a.srv.Handler }

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

// Close ends voice sessions and releases the store. Best effort.
func (a *App) Close(ctx context.Context) error {
	if a.matches != nil {
		a.matches.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
