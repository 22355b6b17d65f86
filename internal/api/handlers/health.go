// Пакет handlers - служебные HTTP endpoints.
// /health/live - liveness probe (процесс жив)
// /health/ready - readiness probe (backend PaperMind доступен)
// /metrics - Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anismabaziz/paper-mind/internal/config"
)

// serviceName - имя сервиса в ответах health endpoints.
const serviceName = "papermind"

// ReadinessChecker - проверка готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler - обработчик health endpoints.
type HealthHandler struct {
	backend     ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// backend может быть nil - readiness вернёт "fail".
func NewHealthHandler(backend ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		backend:     backend,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

// HealthLive - liveness probe. Всегда 200.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady - readiness probe. 200 при доступном backend, иначе 503.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	check := healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	if h.backend != nil {
		status, msg := h.backend.CheckReady()
		check = healthCheckResult{Status: status, Message: msg}
	}

	resp := healthResponse{
		Status:    check.Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    map[string]healthCheckResult{"backend": check},
	}

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics - Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

const (
	statusOK   = "ok"
	statusFail = "fail"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
