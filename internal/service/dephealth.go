// dephealth.go — интеграция с topologymetrics SDK для мониторинга
// зависимостей каталога:
//   - PostgreSQL — SQL checker через существующий pgxpool (critical)
//   - S3 — HTTP checker к endpoint хранилища объектов (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
)

// DephealthService — мониторинг зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// PostgreSQL проверяется через *sql.DB (адаптер pgxpool из
// stdlib.OpenDBFromPool), что отражает реальное состояние пула
// соединений. S3 проверяется HTTP-запросом к endpoint хранилища.
func NewDephealthService(
	serviceID string,
	db *sql.DB,
	pgConnURL string,
	s3Endpoint string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(pgConnURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	}

	// Пустой endpoint означает стандартный AWS — HTTP-проверка не нужна
	if s3Endpoint != "" {
		opts = append(opts, dephealth.HTTP("s3",
			dephealth.FromURL(s3Endpoint),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}

	dh, err := dephealth.New(serviceID, "prodstore", opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + S3)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
