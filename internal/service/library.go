// library.go - сервис библиотеки документов.
// Связывает клиент backend, кэш запросов и локальную проверку PDF.
// Мутации инвалидируют зависимые ключи кэша только после успеха.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anismabaziz/paper-mind/internal/backendclient"
	"github.com/anismabaziz/paper-mind/internal/domain/model"
	"github.com/anismabaziz/paper-mind/internal/pdfcheck"
	"github.com/anismabaziz/paper-mind/internal/query"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound - документа нет в библиотеке.
	ErrNotFound = errors.New("документ не найден")
	// ErrInvalidUpload - файл не прошёл локальную проверку.
	ErrInvalidUpload = errors.New("недопустимый файл для загрузки")
)

// Prometheus-метрики операций с документами.
var documentOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pm_document_operations_total",
		Help: "Общее количество операций с документами.",
	},
	[]string{"operation", "result"},
)

// FilesKey - ключ кэша списка документов.
var FilesKey = query.Key{"files"}

// StatusKey - ключ кэша статуса обработки документа.
func StatusKey(doc model.Document) query.Key {
	return query.Key{doc.Name, "is-processed"}
}

// Backend - операции backend, используемые сервисом.
type Backend interface {
	ListDocuments(ctx context.Context) ([]model.Document, error)
	UploadDocument(ctx context.Context, upload model.Upload) (*model.UploadResult, error)
	DeleteDocument(ctx context.Context, doc model.Document) (string, error)
	CheckProcessed(ctx context.Context, doc model.Document) (bool, error)
	ProcessDocument(ctx context.Context, doc model.Document) (string, error)
}

// Reconciler согласует выбор со свежим списком документов.
type Reconciler interface {
	Reconcile(docs []model.Document) bool
}

// LibraryService - сервис библиотеки документов.
type LibraryService struct {
	backend   Backend
	cache     *query.Client
	validator *pdfcheck.Validator
	logger    *slog.Logger
}

// NewLibraryService создаёт сервис библиотеки.
func NewLibraryService(
	backend Backend,
	cache *query.Client,
	validator *pdfcheck.Validator,
	logger *slog.Logger,
) *LibraryService {
	return &LibraryService{
		backend:   backend,
		cache:     cache,
		validator: validator,
		logger:    logger.With(slog.String("component", "library_service")),
	}
}

// Documents возвращает список документов (из кэша или backend).
// После успешного получения выбор sel согласуется со списком; sel может быть nil.
func (s *LibraryService) Documents(ctx context.Context, sel Reconciler) query.Result[[]model.Document] {
	r := query.Query(ctx, s.cache, FilesKey, s.backend.ListDocuments)
	if r.Err != nil {
		s.logger.Warn("Ошибка получения списка документов", slog.String("error", r.Err.Error()))
		return r
	}
	if sel != nil {
		sel.Reconcile(r.Data)
	}
	return r
}

// Find возвращает документ по идентификатору из текущего списка.
func (s *LibraryService) Find(ctx context.Context, id string) (model.Document, error) {
	docs, err := query.Fetch(ctx, s.cache, FilesKey, s.backend.ListDocuments)
	if err != nil {
		return model.Document{}, fmt.Errorf("получение списка документов: %w", err)
	}
	i := model.IndexByID(docs, id)
	if i < 0 {
		return model.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return docs[i], nil
}

// Upload проверяет файл и загружает его в backend.
// При успехе инвалидирует список документов и статус одноимённого документа.
func (s *LibraryService) Upload(ctx context.Context, upload model.Upload) (*model.UploadResult, error) {
	if strings.TrimSpace(upload.Filename) == "" {
		documentOperationsTotal.WithLabelValues("upload", "invalid").Inc()
		return nil, fmt.Errorf("%w: не указано имя файла", ErrInvalidUpload)
	}
	pages, err := s.validator.Validate(upload.Data)
	if err != nil {
		documentOperationsTotal.WithLabelValues("upload", "invalid").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	result, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*model.UploadResult, error) {
		return s.backend.UploadDocument(ctx, upload)
	}, FilesKey, query.Key{upload.Filename})
	if err != nil {
		documentOperationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, fmt.Errorf("загрузка %s: %w", upload.Filename, err)
	}

	documentOperationsTotal.WithLabelValues("upload", "ok").Inc()
	s.logger.Info("Документ загружен",
		slog.String("filename", upload.Filename),
		slog.Int("size", len(upload.Data)),
		slog.Int("pages", pages),
	)
	return result, nil
}

// Delete удаляет документ по идентификатору.
// Если backend уже не знает файл (404), список в кэше устарел и сбрасывается.
func (s *LibraryService) Delete(ctx context.Context, id string) (model.Document, error) {
	doc, err := s.Find(ctx, id)
	if err != nil {
		return model.Document{}, err
	}

	_, err = query.Mutate(ctx, s.cache, func(ctx context.Context) (string, error) {
		return s.backend.DeleteDocument(ctx, doc)
	}, FilesKey, query.Key{doc.Name})
	if err != nil {
		documentOperationsTotal.WithLabelValues("delete", "error").Inc()
		if backendclient.IsStatus(err, http.StatusNotFound) {
			s.cache.Invalidate(FilesKey)
			return model.Document{}, fmt.Errorf("%w: %s: %w", ErrNotFound, doc.Name, err)
		}
		return model.Document{}, fmt.Errorf("удаление %s: %w", doc.Name, err)
	}

	documentOperationsTotal.WithLabelValues("delete", "ok").Inc()
	s.logger.Info("Документ удалён",
		slog.String("id", doc.ID),
		slog.String("name", doc.Name),
	)
	return doc, nil
}

// IsProcessed возвращает статус обработки документа.
func (s *LibraryService) IsProcessed(ctx context.Context, doc model.Document) query.Result[bool] {
	return query.Query(ctx, s.cache, StatusKey(doc), func(ctx context.Context) (bool, error) {
		return s.backend.CheckProcessed(ctx, doc)
	})
}

// Process запускает обработку документа и инвалидирует его статус.
func (s *LibraryService) Process(ctx context.Context, doc model.Document) (string, error) {
	msg, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (string, error) {
		return s.backend.ProcessDocument(ctx, doc)
	}, StatusKey(doc))
	if err != nil {
		documentOperationsTotal.WithLabelValues("process", "error").Inc()
		return "", fmt.Errorf("обработка %s: %w", doc.Name, err)
	}

	documentOperationsTotal.WithLabelValues("process", "ok").Inc()
	s.logger.Info("Обработка документа запущена", slog.String("name", doc.Name))
	return msg, nil
}

// OnInvalidate подписывает fn на инвалидации кэша. Возвращает функцию отписки.
func (s *LibraryService) OnInvalidate(fn func(query.Key)) func() {
	return s.cache.Subscribe(fn)
}
