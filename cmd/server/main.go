package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-analysis/internal/api/handlers"
	"face-analysis/internal/api/middleware"
	"face-analysis/internal/api/websocket"
	"face-analysis/internal/app"
	"face-analysis/internal/config"
	"face-analysis/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"
)

func main() {
	// ASCII баннер
	printBanner()

	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	rootLogger := logger.New(cfg.Env, cfg.LogLevel)
	helper := log.NewHelper(log.With(rootLogger, "module", "main"))
	helper.Info("✅ Конфигурация загружена")

	if err := run(cfg, rootLogger, helper); err != nil {
		helper.Errorf("❌ %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, rootLogger log.Logger, helper *log.Helper) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем сервисы
	application, cleanup, err := app.New(cfg, rootLogger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации: %w", err)
	}
	defer cleanup()
	helper.Infof("✅ Кэш: %s, ключ: %s", cfg.Cache.Backend, cfg.Cache.KeyHash)
	if application.Repository != nil {
		helper.Info("✅ История анализов включена")
	}

	// Проверяем доступность шлюза
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := application.Gateway.HealthCheck(checkCtx); err != nil {
		helper.Warnf("⚠️  Шлюз %s недоступен: %v", cfg.Gateway.URL, err)
	} else {
		helper.Info("✅ Шлюз функций доступен")
	}
	cancel()

	// WebSocket manager и фоновые задачи
	application.RunBackground(ctx)
	helper.Info("✅ WebSocket manager запущен")

	handler := handlers.NewHandler(application.Orchestrator, application.Repository, rootLogger, application.HealthChecks()...)
	router := setupRouter(handler, application, cfg, rootLogger)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	helper.Info("🎉 Сервер успешно запущен!")
	helper.Infof("📡 API: http://localhost:%s/api", cfg.Server.Port)
	helper.Infof("🔌 WebSocket: ws://localhost:%s/ws", cfg.Server.Port)
	helper.Infof("📈 Метрики: http://localhost:%s/metrics", cfg.Server.Port)

	select {
	case <-ctx.Done():
		helper.Info("🛑 Получен сигнал остановки")
	case err := <-errChan:
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	helper.Info("👋 Сервер остановлен")
	return nil
}

// setupRouter настраивает роутер с middleware и endpoints
func setupRouter(handler *handlers.Handler, application *app.App, cfg *config.Config, rootLogger log.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Recovery(rootLogger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(rootLogger))
	router.Use(middleware.CORS())

	// Вход в стиле функции шлюза
	router.POST("/", handler.HandleFunction)

	// WebSocket endpoint
	wsHandler := websocket.NewHandler(application.WSManager)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// API группа
	api := router.Group("/api")
	{
		api.POST("/analyze", handler.HandleAnalyze)
		api.GET("/analyses", handler.HandleListAnalyses)
		api.GET("/analyses/:id", handler.HandleGetAnalysis)
		api.GET("/stats", handler.HandleGetStats)
	}

	router.GET("/health", handler.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{})))

	return router
}

// printBanner печатает баннер при старте
func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════╗
║                                                       ║
║   🎭  FACE ANALYSIS ORCHESTRATOR                      ║
║                                                       ║
║   Детекция лиц, пол и эмоции                          ║
║   через функции шлюза с кэшем результатов             ║
║                                                       ║
╚═══════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}
