// dephealth.go - мониторинг backend PaperMind через topologymetrics SDK.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health - состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds - задержка проверки
package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/prometheus/client_golang/prometheus"
)

// BackendDependency - имя зависимости backend в метриках.
const BackendDependency = "papermind-backend"

// backendHealthPath - health endpoint backend.
const backendHealthPath = "/health"

// DephealthService - сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга backend.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(
	serviceID string,
	group string,
	backendURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, backendURL, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	backendURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, backendURL, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	backendURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	depOpts := []dephealth.DependencyOption{
		dephealth.FromURL(backendURL),
		dephealth.WithHTTPHealthPath(healthPath(backendURL)),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(true),
	}
	if parsed, err := url.Parse(backendURL); err == nil && parsed.Scheme == "https" {
		depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 2+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP(BackendDependency, depOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPath добавляет путь базового URL backend к /health.
func healthPath(backendURL string) string {
	parsed, err := url.Parse(backendURL)
	if err != nil {
		return backendHealthPath
	}
	return strings.TrimRight(parsed.Path, "/") + backendHealthPath
}

// Start запускает периодическую проверку backend.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (backend PaperMind)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ - имя зависимости с адресом, значение - true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// CheckReady реализует проверку готовности для readiness probe.
// Пока первая проверка не выполнена, backend считается недоступным.
func (ds *DephealthService) CheckReady() (status, message string) {
	healthy, found := backendHealth(ds.Health())
	switch {
	case !found:
		return "fail", "проверка backend ещё не выполнена"
	case !healthy:
		return "fail", "backend недоступен"
	default:
		return "ok", ""
	}
}

// backendHealth ищет статус backend среди ключей формата "dependency:host:port".
func backendHealth(health map[string]bool) (healthy, found bool) {
	healthy = true
	for key, ok := range health {
		if key == BackendDependency || strings.HasPrefix(key, BackendDependency+":") {
			found = true
			healthy = healthy && ok
		}
	}
	return healthy && found, found
}
