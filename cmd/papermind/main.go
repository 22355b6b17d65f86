// main.go - точка входа PaperMind UI.
// Инициализация: config → logger → backend client → кэш запросов →
// сервисы → topologymetrics → UI (i18n, сессии) → HTTP-сервер.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/anismabaziz/paper-mind/internal/api/handlers"
	"github.com/anismabaziz/paper-mind/internal/backendclient"
	"github.com/anismabaziz/paper-mind/internal/config"
	"github.com/anismabaziz/paper-mind/internal/pdfcheck"
	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/server"
	"github.com/anismabaziz/paper-mind/internal/service"
	uihandlers "github.com/anismabaziz/paper-mind/internal/ui/handlers"
	"github.com/anismabaziz/paper-mind/internal/ui/i18n"
	uimiddleware "github.com/anismabaziz/paper-mind/internal/ui/middleware"
	"github.com/anismabaziz/paper-mind/internal/ui/session"
)

// maxSessions - верхняя граница числа одновременно хранимых UI-сессий.
const maxSessions = 10000

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("PaperMind UI запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("backend_url", cfg.BackendURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Клиент backend
	backend, err := backendclient.New(
		cfg.BackendURL,
		cfg.BackendCACertPath,
		cfg.BackendTimeout,
		cfg.ValidateResponses,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания клиента backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Кэш запросов и сервис библиотеки
	cache := query.NewClient(cfg.QueryCacheSize, cfg.QueryStaleTime)
	library := service.NewLibraryService(
		backend,
		cache,
		pdfcheck.NewValidator(cfg.UploadMaxBytes),
		logger,
	)

	// 5. topologymetrics - мониторинг backend
	healthHandler := handlers.NewHealthHandler(nil)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"papermind",
		cfg.DephealthGroup,
		backend.BaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, readiness всегда fail",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		healthHandler = handlers.NewHealthHandler(dephealthSvc)
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 6. UI: переводы, сессии, выбор документа по сессиям
	bundle, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sessionMgr, err := session.NewManager(cfg.SessionSecret, cfg.SecureCookie, cfg.SessionTTL)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("PM_SESSION_SECRET не задан, сессии не переживут перезапуск")
	}
	registry := selection.NewRegistry(maxSessions, cfg.SessionTTL)

	// 7. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, server.Handlers{
		Health:    healthHandler,
		Workspace: uihandlers.NewWorkspaceHandler(library, cfg.UploadMaxBytes, logger),
		Events:    uihandlers.NewEventsHandler(library, cfg.SSEKeepalive, logger),
		I18n:      bundle,
		Sessions:  uimiddleware.NewSessions(sessionMgr, registry, logger),
	})
	runErr := srv.Run(ctx)

	// 8. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("PaperMind UI остановлен")
}
