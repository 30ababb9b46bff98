package app

import (
	"time"

	"face-analysis/internal/api/websocket"
	"face-analysis/internal/config"
	"face-analysis/internal/repository"
	"face-analysis/internal/service/cache"
	"face-analysis/internal/service/metrics"
	"face-analysis/internal/service/orchestrator"
	"face-analysis/pkg/faas_client"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProviderSet - провайдеры всех компонентов сервиса
var ProviderSet = wire.NewSet(
	provideCacheStore,
	provideKeyDeriver,
	provideGateway,
	provideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	metrics.New,
	provideDatabase,
	provideRepository,
	websocket.NewManager,
	provideOrchestrator,
)

func provideCacheStore(cfg *config.Config, logger log.Logger) (cache.Store, func(), error) {
	if cfg.Cache.Backend == config.CacheBackendMemory {
		log.NewHelper(log.With(logger, "module", "app")).Warn("используется кэш в памяти процесса")
		return cache.NewMemoryStore(), func() {}, nil
	}

	store, cleanup, err := cache.NewRedisStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cleanup, nil
}

func provideKeyDeriver(cfg *config.Config) (*cache.KeyDeriver, error) {
	return cache.NewKeyDeriver(cfg.Cache.KeyHash, cfg.Cache.KeyPrefix)
}

func provideGateway(cfg *config.Config) *faas_client.Client {
	return faas_client.NewClient(faas_client.Config{
		GatewayURL:       cfg.Gateway.URL,
		Timeout:          cfg.Gateway.Timeout,
		MaxResponseBytes: cfg.Gateway.MaxResponseBytes,
	})
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// provideDatabase подключает PostgreSQL для истории.
// При DB_ENABLED=false возвращает nil.
func provideDatabase(cfg *config.Config, logger log.Logger) (*sqlx.DB, func(), error) {
	if !cfg.Database.Enabled {
		return nil, func() {}, nil
	}
	helper := log.NewHelper(log.With(logger, "module", "app"))

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, nil, err
	}

	// Настраиваем connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db.DB, cfg.Database.Name); err != nil {
			db.Close()
			return nil, nil, err
		}
		helper.Info("миграции применены")
	}

	cleanup := func() {
		helper.Info("закрываем подключение к БД")
		db.Close()
	}
	return db, cleanup, nil
}

func provideRepository(db *sqlx.DB) repository.AnalysisRepository {
	if db == nil {
		return nil
	}
	return repository.NewRepository(db)
}

func provideOrchestrator(
	cfg *config.Config,
	store cache.Store,
	gateway *faas_client.Client,
	keys *cache.KeyDeriver,
	m *metrics.Metrics,
	repo repository.AnalysisRepository,
	ws *websocket.Manager,
	logger log.Logger,
) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithMetrics(m),
		orchestrator.WithNotifier(ws),
	}
	if repo != nil {
		opts = append(opts, orchestrator.WithHistory(repo))
	}

	return orchestrator.New(orchestrator.Config{
		Functions: orchestrator.Functions{
			Detection: cfg.FaceDetectionFunction,
			Gender:    cfg.GenderDetectionFunction,
			Emotion:   cfg.EmotionDetectionFunction,
		},
		CacheTTL:    cfg.Redis.Expiration(),
		JPEGQuality: cfg.Image.JPEGQuality,
		MaxPixels:   cfg.Image.MaxPixels,
	}, store, gateway, keys, logger, opts...)
}
