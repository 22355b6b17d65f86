// Пакет backendclient - HTTP-клиент backend-сервиса PaperMind.
// Пять операций: список файлов, загрузка, удаление, проверка и запуск обработки.
// Клиент не хранит состояния, не кэширует и не повторяет запросы:
// ошибки backend возвращаются вызывающему коду как есть.
package backendclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anismabaziz/paper-mind/internal/domain/model"
)

// Пути endpoints backend (относительно базового URL).
const (
	pathFiles       = "/files"
	pathUpload      = "/upload"
	pathRemove      = "/files/remove"
	pathIsProcessed = "/file/is-processed"
	pathProcess     = "/process-file"
)

// Максимальный размер читаемого тела ответа (16 MB).
const maxResponseBytes = 16 << 20

// Prometheus-метрики запросов к backend.
var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_backend_requests_total",
			Help: "Общее количество запросов к backend PaperMind",
		},
		[]string{"operation", "status"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pm_backend_request_duration_seconds",
			Help:    "Длительность запросов к backend PaperMind в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Client - HTTP-клиент backend PaperMind.
type Client struct {
	httpClient *http.Client
	baseURL    string
	contract   *contract // nil - проверка по контракту отключена
	logger     *slog.Logger
}

// New создаёт клиент backend.
// baseURL - базовый URL backend (например, http://localhost:3000).
// caCertPath - путь к CA-сертификату для TLS (пустая строка - стандартный пул).
// timeout - таймаут HTTP-запросов (0 - без явного таймаута).
// validate - проверять успешные ответы по встроенному OpenAPI-контракту.
func New(
	baseURL string,
	caCertPath string,
	timeout time.Duration,
	validate bool,
	logger *slog.Logger,
) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата backend: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат backend добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "backend_client")),
	}

	if validate {
		ct, err := loadContract(context.Background())
		if err != nil {
			return nil, err
		}
		c.contract = ct
	}

	return c, nil
}

// BaseURL возвращает базовый URL backend.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDocuments возвращает документы в порядке, заданном backend.
// GET /files → {"files": [...]}
func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var resp struct {
		Files []model.Document `json:"files"`
	}
	if err := c.do(ctx, "ListDocuments", http.MethodGet, pathFiles, nil, nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		resp.Files = []model.Document{}
	}
	return resp.Files, nil
}

// UploadDocument загружает файл multipart-формой с полем "file".
// POST /upload → {"message": "...", "file"?: {...}}
func (c *Client) UploadDocument(ctx context.Context, upload model.Upload) (*model.UploadResult, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return nil, fmt.Errorf("UploadDocument: формирование multipart: %w", err)
	}

	var result model.UploadResult
	if err := c.do(ctx, "UploadDocument", http.MethodPost, pathUpload, nil, body, contentType, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("Файл загружен в backend",
		slog.String("filename", upload.Filename),
		slog.String("stored_name", result.StoredName()),
	)
	return &result, nil
}

// DeleteDocument удаляет документ. Backend идентифицирует файл по имени.
// DELETE /files/remove?path=<name> → {"message": "..."}
func (c *Client) DeleteDocument(ctx context.Context, doc model.Document) (string, error) {
	query := url.Values{"path": {doc.Name}}

	var resp messageResponse
	if err := c.do(ctx, "DeleteDocument", http.MethodDelete, pathRemove, query, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CheckProcessed проверяет, обработан ли документ backend.
// POST /file/is-processed {"filename": name} → {"is_processed": bool}
func (c *Client) CheckProcessed(ctx context.Context, doc model.Document) (bool, error) {
	body, err := encodeFilename(doc.Name)
	if err != nil {
		return false, fmt.Errorf("CheckProcessed: %w", err)
	}

	var resp struct {
		IsProcessed bool `json:"is_processed"`
	}
	if err := c.do(ctx, "CheckProcessed", http.MethodPost, pathIsProcessed, nil, body, "application/json", &resp); err != nil {
		return false, err
	}
	return resp.IsProcessed, nil
}

// ProcessDocument запускает обработку документа (извлечение текста, эмбеддинги).
// POST /process-file {"filename": name} → {"message": "..."} или {"results": "..."}
func (c *Client) ProcessDocument(ctx context.Context, doc model.Document) (string, error) {
	body, err := encodeFilename(doc.Name)
	if err != nil {
		return "", fmt.Errorf("ProcessDocument: %w", err)
	}

	var resp processResponse
	if err := c.do(ctx, "ProcessDocument", http.MethodPost, pathProcess, nil, body, "application/json", &resp); err != nil {
		return "", err
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return resp.Results, nil
}

// processResponse - ответ /process-file.
type processResponse struct {
	Message string `json:"message"`
	Results string `json:"results"`
}

// messageResponse - ответ вида {"message": "..."}.
type messageResponse struct {
	Message string `json:"message"`
}

// do выполняет запрос к backend и декодирует успешный ответ в out.
// Ошибки: транспортные (обёрнутые), *StatusError для не-2xx,
// ErrMalformedResponse для некорректного тела ответа.
func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	body io.Reader,
	contentType string,
	out any,
) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		backendRequestsTotal.WithLabelValues(op, "error").Inc()
		backendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		return fmt.Errorf("запрос %s к %s: %w", op, c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	backendRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	backendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("чтение ответа %s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := newStatusError(op, resp.StatusCode, data)
		c.logger.Warn("Backend вернул ошибку",
			slog.String("operation", op),
			slog.Int("status", resp.StatusCode),
			slog.String("message", se.Message),
		)
		return se
	}

	if c.contract != nil {
		if err := c.contract.validateResponse(ctx, req, path, resp.StatusCode, resp.Header, data); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	return nil
}

// encodeFilename кодирует тело {"filename": name}.
func encodeFilename(name string) (io.Reader, error) {
	data, err := json.Marshal(struct {
		Filename string `json:"filename"`
	}{Filename: name})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// quoteEscaper экранирует кавычки в имени файла для Content-Disposition.
var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeUpload формирует multipart-тело с единственной частью "file".
// Возвращает тело и значение заголовка Content-Type (с boundary).
func encodeUpload(upload model.Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(upload.Filename)))
	header.Set("Content-Type", upload.ContentType())

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
