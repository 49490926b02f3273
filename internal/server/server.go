// Пакет server — HTTP-сервер каталога с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/prodstore/internal/api/handlers"
	"github.com/bigkaa/prodstore/internal/api/middleware"
	"github.com/bigkaa/prodstore/internal/config"
)

// Handlers — набор обработчиков для маршрутизации.
type Handlers struct {
	Health      *handlers.HealthHandler
	Products    *handlers.ProductHandler
	Collections *handlers.CollectionHandler
	Users       *handlers.UserHandler
}

// Server — HTTP-сервер каталога.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// Health endpoints и /metrics доступны без аутентификации;
// всё под /api/v1 защищено JWT.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, auth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware())

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.Search)
			r.Post("/", h.Products.Create)
			r.Get("/{id}", h.Products.Get)
			r.Get("/{id}/latest", h.Products.GetLatest)
			r.Get("/{id}/versions", h.Products.ListVersions)
		})

		r.Route("/collections", func(r chi.Router) {
			r.Post("/", h.Collections.Create)
			r.Get("/{id}", h.Collections.Get)
			r.Put("/{id}", h.Collections.Update)
			r.Delete("/{id}", h.Collections.Delete)
		})

		r.Get("/users/me/groups", h.Users.Groups)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
