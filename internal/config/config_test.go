package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// clearEnvs сбрасывает переменные PM_* (пустое значение = не задано).
func clearEnvs(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PM_PORT", "PM_LOG_LEVEL", "PM_LOG_FORMAT",
		"PM_BACKEND_URL", "PM_BACKEND_TIMEOUT", "PM_BACKEND_CA_CERT_PATH", "PM_VALIDATE_RESPONSES",
		"PM_QUERY_CACHE_SIZE", "PM_QUERY_STALE_TIME", "PM_UPLOAD_MAX_BYTES",
		"PM_SESSION_SECRET", "PM_PUBLIC_URL", "PM_SESSION_TTL", "PM_SSE_KEEPALIVE",
		"PM_DEPHEALTH_GROUP", "PM_DEPHEALTH_CHECK_INTERVAL",
		"PM_HTTP_READ_TIMEOUT", "PM_HTTP_WRITE_TIMEOUT", "PM_HTTP_IDLE_TIMEOUT",
		"PM_SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnvs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.BackendURL != "http://localhost:3000" {
		t.Errorf("BackendURL = %q, ожидается http://localhost:3000", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 0 {
		t.Errorf("BackendTimeout = %v, ожидается 0", cfg.BackendTimeout)
	}
	if !cfg.ValidateResponses {
		t.Error("ValidateResponses = false, ожидается true")
	}
	if cfg.QueryCacheSize != 256 {
		t.Errorf("QueryCacheSize = %d, ожидается 256", cfg.QueryCacheSize)
	}
	if cfg.QueryStaleTime != 30*time.Second {
		t.Errorf("QueryStaleTime = %v, ожидается 30s", cfg.QueryStaleTime)
	}
	if cfg.UploadMaxBytes != 32<<20 {
		t.Errorf("UploadMaxBytes = %d, ожидается %d", cfg.UploadMaxBytes, 32<<20)
	}
	if cfg.SecureCookie {
		t.Error("SecureCookie = true, ожидается false")
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, ожидается 24h", cfg.SessionTTL)
	}
	if cfg.DephealthGroup != "papermind" {
		t.Errorf("DephealthGroup = %q, ожидается papermind", cfg.DephealthGroup)
	}
	if cfg.HTTPWriteTimeout != 0 {
		t.Errorf("HTTPWriteTimeout = %v, ожидается 0", cfg.HTTPWriteTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnvs(t)
	setEnvs(t, map[string]string{
		"PM_PORT":               "9000",
		"PM_LOG_LEVEL":          "debug",
		"PM_LOG_FORMAT":         "text",
		"PM_BACKEND_URL":        "https://api.papermind.local/",
		"PM_BACKEND_TIMEOUT":    "10s",
		"PM_VALIDATE_RESPONSES": "false",
		"PM_QUERY_STALE_TIME":   "1m",
		"PM_PUBLIC_URL":         "https://papermind.local",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, ожидается 9000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	// Trailing slash убирается
	if cfg.BackendURL != "https://api.papermind.local" {
		t.Errorf("BackendURL = %q, ожидается https://api.papermind.local", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("BackendTimeout = %v, ожидается 10s", cfg.BackendTimeout)
	}
	if cfg.ValidateResponses {
		t.Error("ValidateResponses = true, ожидается false")
	}
	if cfg.QueryStaleTime != time.Minute {
		t.Errorf("QueryStaleTime = %v, ожидается 1m", cfg.QueryStaleTime)
	}
	if !cfg.SecureCookie {
		t.Error("SecureCookie = false, ожидается true для https PM_PUBLIC_URL")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт не число", "PM_PORT", "abc"},
		{"порт вне диапазона", "PM_PORT", "70000"},
		{"неизвестный уровень логов", "PM_LOG_LEVEL", "verbose"},
		{"неизвестный формат логов", "PM_LOG_FORMAT", "xml"},
		{"backend без схемы", "PM_BACKEND_URL", "localhost:3000"},
		{"отрицательный таймаут backend", "PM_BACKEND_TIMEOUT", "-1s"},
		{"некорректный bool", "PM_VALIDATE_RESPONSES", "yes please"},
		{"нулевой размер кэша", "PM_QUERY_CACHE_SIZE", "0"},
		{"нулевой stale time", "PM_QUERY_STALE_TIME", "0s"},
		{"нулевой лимит загрузки", "PM_UPLOAD_MAX_BYTES", "0"},
		{"некорректная длительность", "PM_SESSION_TTL", "day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvs(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if err != nil {
			t.Errorf("parseLogLevel(%q) ошибка: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидается %v", tt.input, got, tt.want)
		}
	}
}
