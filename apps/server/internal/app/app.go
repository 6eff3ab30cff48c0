package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bluff-lite/apps/server/internal/cache"
	"bluff-lite/apps/server/internal/chat"
	"bluff-lite/apps/server/internal/config"
	"bluff-lite/apps/server/internal/decision"
	"bluff-lite/apps/server/internal/gateway"
	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/apps/server/internal/monitoring"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff/npc"
)

var log = logrus.WithField("component", "app")

// App is the wired decision service.
type App struct {
	Config    config.Config
	StoreMode string
	Store     *store.Store
	Persona   *npc.NPCPersona
	Decider   *decision.Decider
	Monitor   *monitoring.Monitor
	Gateway   *gateway.Gateway

	closers []func() error
}

// Build wires every component from cfg and restores persisted state.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	backend, mode, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.StoreMode = mode
	a.Store = store.New(backend)
	a.closers = append(a.closers, a.Store.Close)

	var rdb redis.UniversalClient
	if cfg.LockMode == "redis" || cfg.CacheMode == "redis" {
		rdb, err = dialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
	}

	var locker lock.Locker = lock.NewMemory()
	if cfg.LockMode == "redis" {
		locker = lock.NewRedis(rdb)
	}

	var decisions cache.DecisionCache
	switch cfg.CacheMode {
	case "memory":
		decisions = cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)
	case "redis":
		decisions = cache.NewRedis(rdb, cfg.CacheTTL)
	}

	registry := npc.NewRegistry()
	if cfg.PersonaFile != "" {
		if err := registry.LoadFromFile(cfg.PersonaFile); err != nil {
			return nil, err
		}
	}
	a.Persona = registry.GetOrDefault(cfg.PersonaID)

	var analyzer chat.Analyzer = chat.NewLexicon()
	if cfg.OpenAIKey != "" {
		analyzer, err = chat.NewOpenAI(chat.OpenAIConfig{
			APIKey:     cfg.OpenAIKey,
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			RatePerSec: cfg.ChatRate,
		}, chat.NewLexicon())
		if err != nil {
			return nil, err
		}
	}

	seed := time.Now().UnixNano()
	policyCfg := npc.DefaultPolicyConfig()
	policyCfg.Exploration = cfg.Exploration

	a.Monitor = monitoring.New(a.Store, locker)
	a.Gateway = gateway.New()
	a.Monitor.Subscribe(a.Gateway.Publish)

	a.Decider = decision.New(decision.Deps{
		Policy:   npc.NewPolicy(policyCfg, seed),
		Patterns: npc.NewPatternBook(),
		Brain:    npc.NewRuleBrain(a.Persona, npc.DefaultFusion(), seed),
		Monitor:  a.Monitor,
		Store:    a.Store,
		Cache:    decisions,
		Locker:   locker,
		Chat:     analyzer,
		Config: decision.Config{
			SignalTimeout: cfg.SignalTimeout,
			Budget:        cfg.DecisionBudget,
			LockTTL:       cfg.LockTTL,
		},
	})
	a.Decider.Load(ctx)

	log.WithFields(logrus.Fields{
		"store":   mode,
		"lock":    cfg.LockMode,
		"cache":   cfg.CacheMode,
		"persona": a.Persona.ID,
	}).Info("decision service ready")
	ok = true
	return a, nil
}

func dialRedis(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Handler serves health, metrics, the monitoring API and the decision feed.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	monitoring.NewHTTPHandler(a.Monitor, a.Decider).RegisterRoutes(mux)
	decision.NewHTTPHandler(a.Decider).RegisterRoutes(mux)
	a.Gateway.RegisterRoutes(mux)
	return mux
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
