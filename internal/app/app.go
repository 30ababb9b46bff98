package app

import (
	"context"
	"time"

	"face-analysis/internal/api/handlers"
	"face-analysis/internal/api/websocket"
	"face-analysis/internal/config"
	"face-analysis/internal/repository"
	"face-analysis/internal/service/cache"
	"face-analysis/internal/service/orchestrator"
	"face-analysis/pkg/faas_client"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

// App - собранный сервис
type App struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Gateway      *faas_client.Client
	Cache        cache.Store
	Repository   repository.AnalysisRepository // nil, если история отключена
	WSManager    *websocket.Manager
	Registry     *prometheus.Registry
	DB           *sqlx.DB
}

func newApp(
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	gateway *faas_client.Client,
	store cache.Store,
	repo repository.AnalysisRepository,
	ws *websocket.Manager,
	registry *prometheus.Registry,
	db *sqlx.DB,
) *App {
	return &App{
		Config:       cfg,
		Orchestrator: orch,
		Gateway:      gateway,
		Cache:        store,
		Repository:   repo,
		WSManager:    ws,
		Registry:     registry,
		DB:           db,
	}
}

// RunBackground запускает фоновые задачи до отмены ctx
func (a *App) RunBackground(ctx context.Context) {
	go a.WSManager.Run(ctx)

	if mem, ok := a.Cache.(*cache.MemoryStore); ok {
		go mem.RunJanitor(ctx, janitorInterval(a.Config.Redis.Expiration()))
	}
}

func janitorInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// HealthChecks возвращает проверки зависимостей для /health
func (a *App) HealthChecks() []handlers.HealthCheck {
	checks := []handlers.HealthCheck{
		{Name: "gateway", Check: a.Gateway.HealthCheck},
	}
	if p, ok := a.Cache.(cache.Pinger); ok {
		checks = append(checks, handlers.HealthCheck{Name: "cache", Check: p.Ping})
	}
	if a.DB != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Check: a.DB.PingContext})
	}
	return checks
}
