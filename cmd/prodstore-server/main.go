// Точка входа сервера каталога prodstore.
// Загружает конфигурацию, подключается к PostgreSQL, применяет
// миграции, создаёт репозитории, сервисный слой и API handlers,
// запускает мониторинг зависимостей (topologymetrics) и HTTP-сервер
// с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/prodstore/internal/api/handlers"
	"github.com/bigkaa/prodstore/internal/api/middleware"
	"github.com/bigkaa/prodstore/internal/config"
	"github.com/bigkaa/prodstore/internal/database"
	"github.com/bigkaa/prodstore/internal/repository"
	"github.com/bigkaa/prodstore/internal/server"
	"github.com/bigkaa/prodstore/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := cfg.SetupLogger()
	logger.Info("Сервер каталога запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	// (connection pool mode: проверка здоровья через существующий пул)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	productRepo := repository.NewProductRepository(pool)
	collectionRepo := repository.NewCollectionRepository(pool)

	// 6. Services
	productSvc := service.NewProductService(productRepo, logger)
	collectionSvc := service.NewCollectionService(collectionRepo, logger)

	// 7. Мониторинг зависимостей (topologymetrics)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"prodstore",
		pgDB,
		cfg.DatabaseDSN(),
		cfg.S3Endpoint,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("Мониторинг зависимостей не запущен",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска мониторинга зависимостей",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
		}
	}

	// 8. JWT middleware
	auth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTGroupsClaim, logger)
	if err != nil {
		logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. API handlers
	h := server.Handlers{
		Health:      handlers.NewHealthHandler(database.NewReadinessChecker(pool)),
		Products:    handlers.NewProductHandler(productSvc, logger),
		Collections: handlers.NewCollectionHandler(collectionSvc, logger),
		Users:       handlers.NewUserHandler(),
	}

	// 10. Запуск сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h, auth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Сервер каталога остановлен")
}
