// Пакет server - HTTP-сервер PaperMind UI с graceful shutdown.
// Без TLS - TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/anismabaziz/paper-mind/internal/api/handlers"
	"github.com/anismabaziz/paper-mind/internal/api/middleware"
	"github.com/anismabaziz/paper-mind/internal/config"
	uihandlers "github.com/anismabaziz/paper-mind/internal/ui/handlers"
	"github.com/anismabaziz/paper-mind/internal/ui/i18n"
	uimiddleware "github.com/anismabaziz/paper-mind/internal/ui/middleware"
	"github.com/anismabaziz/paper-mind/internal/ui/static"
)

// Handlers - обработчики, подключаемые к маршрутизатору.
type Handlers struct {
	Health    *handlers.HealthHandler
	Workspace *uihandlers.WorkspaceHandler
	Events    *uihandlers.EventsHandler
	I18n      *i18n.Bundle
	Sessions  *uimiddleware.Sessions
}

// Server - HTTP-сервер PaperMind UI.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config

	// stopStreams отменяет контексты запросов: SSE-потоки завершаются при Shutdown
	stopStreams context.CancelFunc
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, h),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	baseCtx, stopStreams := context.WithCancel(context.Background())
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }
	srv.RegisterOnShutdown(stopStreams)

	return &Server{
		httpServer:  srv,
		logger:      logger,
		cfg:         cfg,
		stopStreams: stopStreams,
	}
}

// NewRouter собирает маршрутизатор.
// Служебные endpoints (health, metrics, static) не создают UI-сессий.
func NewRouter(logger *slog.Logger, h Handlers) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.Recoverer)
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(h.I18n.Middleware())
		r.Use(h.Sessions.Middleware())

		r.Get("/", h.Workspace.HandlePage)
		r.Get("/partials/library", h.Workspace.HandleLibraryPartial)
		r.Get("/partials/viewer", h.Workspace.HandleViewerPartial)
		r.Get("/partials/chat", h.Workspace.HandleChatPartial)
		r.Post("/documents", h.Workspace.HandleUpload)
		r.Post("/documents/{id}/select", h.Workspace.HandleSelect)
		r.Post("/documents/{id}/delete", h.Workspace.HandleDelete)
		r.Post("/documents/{id}/process", h.Workspace.HandleProcess)
		r.Get("/events", h.Events.HandleEvents)
		r.Post("/set-language", uihandlers.HandleSetLanguage)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. После этого выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return s.serve(ctx, ln)
}

// serve обслуживает ln до сигнала, отмены ctx или ошибки сервера.
func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	defer s.stopStreams()

	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", ln.Addr().String()),
		)

		err := s.httpServer.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Shutdown отменяет контексты запросов через stopStreams,
	// открытые SSE-потоки завершаются, не дожидаясь таймаута.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		_ = s.httpServer.Close()
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
