// Пакет config - загрузка и валидация конфигурации PaperMind UI
// из переменных окружения (и необязательного файла .env).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации PaperMind UI.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера UI
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Backend ---

	// Базовый URL backend-сервиса PaperMind (Flask API)
	BackendURL string
	// Таймаут HTTP-запросов к backend (0 - без явного таймаута)
	BackendTimeout time.Duration
	// Путь к CA-сертификату backend (пустая строка - системный пул)
	BackendCACertPath string
	// Проверять ответы backend по OpenAPI-контракту
	ValidateResponses bool

	// --- Кэш запросов ---

	// Максимальное количество ключей в кэше запросов
	QueryCacheSize int
	// Время, в течение которого закэшированный ответ считается свежим
	QueryStaleTime time.Duration

	// --- Загрузка файлов ---

	// Максимальный размер загружаемого PDF в байтах
	UploadMaxBytes int64

	// --- UI-сессии ---

	// Ключ шифрования session cookie (пустой - случайный при старте)
	SessionSecret string
	// Выставлять флаг Secure для cookie (UI опубликован за HTTPS)
	SecureCookie bool
	// Время жизни состояния сессии (выбранный документ)
	SessionTTL time.Duration
	// Интервал keepalive-комментариев в SSE-потоке
	SSEKeepalive time.Duration

	// --- topologymetrics ---

	// Группа в метриках зависимостей
	DephealthGroup string
	// Интервал проверки backend
	DephealthCheckInterval time.Duration

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 0 - SSE-потоки живут долго)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Если в рабочем каталоге есть файл .env, его значения подставляются
// для переменных, которые ещё не заданы в окружении.
func Load() (*Config, error) {
	// Отсутствие .env - штатная ситуация
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PM_PORT - порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("PM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("PM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PM_PORT: порт вне диапазона 1-65535: %d", cfg.Port)
	}

	// PM_LOG_LEVEL - уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PM_LOG_LEVEL: %w", err)
	}

	// PM_LOG_FORMAT - формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Backend ---

	cfg.BackendURL = strings.TrimRight(getEnvDefault("PM_BACKEND_URL", "http://localhost:3000"), "/")
	if !strings.HasPrefix(cfg.BackendURL, "http://") && !strings.HasPrefix(cfg.BackendURL, "https://") {
		return nil, fmt.Errorf("PM_BACKEND_URL: ожидается http:// или https:// URL, получено %q", cfg.BackendURL)
	}

	// PM_BACKEND_TIMEOUT - 0 означает таймаут HTTP-клиента по умолчанию
	cfg.BackendTimeout, err = getEnvDuration("PM_BACKEND_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("PM_BACKEND_TIMEOUT: %w", err)
	}
	if cfg.BackendTimeout < 0 {
		return nil, fmt.Errorf("PM_BACKEND_TIMEOUT: значение должно быть >= 0")
	}

	cfg.BackendCACertPath = os.Getenv("PM_BACKEND_CA_CERT_PATH")

	cfg.ValidateResponses, err = getEnvBool("PM_VALIDATE_RESPONSES", true)
	if err != nil {
		return nil, fmt.Errorf("PM_VALIDATE_RESPONSES: %w", err)
	}

	// --- Кэш запросов ---

	cfg.QueryCacheSize, err = getEnvInt("PM_QUERY_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("PM_QUERY_CACHE_SIZE: %w", err)
	}
	if cfg.QueryCacheSize < 1 {
		return nil, fmt.Errorf("PM_QUERY_CACHE_SIZE: значение должно быть > 0")
	}

	cfg.QueryStaleTime, err = getEnvDurationPositive("PM_QUERY_STALE_TIME", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_QUERY_STALE_TIME: %w", err)
	}

	// --- Загрузка файлов ---

	maxBytes, err := getEnvInt("PM_UPLOAD_MAX_BYTES", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("PM_UPLOAD_MAX_BYTES: %w", err)
	}
	if maxBytes < 1 {
		return nil, fmt.Errorf("PM_UPLOAD_MAX_BYTES: значение должно быть > 0")
	}
	cfg.UploadMaxBytes = int64(maxBytes)

	// --- UI-сессии ---

	cfg.SessionSecret = os.Getenv("PM_SESSION_SECRET")

	// PM_PUBLIC_URL - внешний адрес UI; https включает Secure cookie
	cfg.SecureCookie = strings.HasPrefix(os.Getenv("PM_PUBLIC_URL"), "https://")

	cfg.SessionTTL, err = getEnvDurationPositive("PM_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PM_SESSION_TTL: %w", err)
	}

	cfg.SSEKeepalive, err = getEnvDurationPositive("PM_SSE_KEEPALIVE", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_SSE_KEEPALIVE: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("PM_DEPHEALTH_GROUP", "papermind")

	cfg.DephealthCheckInterval, err = getEnvDurationPositive("PM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("PM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("PM_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("PM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("PM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("PM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive - как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
