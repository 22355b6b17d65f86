// Пакет handlers - HTTP-обработчики UI PaperMind.
// Файл workspace.go - страница библиотеки: полная страница, фрагменты панелей,
// выбор, загрузка, удаление и обработка документов.
// Мутации выполняются POST-запросами с redirect 303 на "/".
// Ошибка мутации перерисовывает страницу с сообщением (400/404/502).
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/anismabaziz/paper-mind/internal/domain/model"
	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/service"
	"github.com/anismabaziz/paper-mind/internal/ui/i18n"
	uimiddleware "github.com/anismabaziz/paper-mind/internal/ui/middleware"
	"github.com/anismabaziz/paper-mind/internal/ui/views"
)

// multipartOverhead - запас на заголовки multipart сверх размера файла.
const multipartOverhead = 1 << 20

// WorkspaceHandler - обработчик страницы библиотеки.
type WorkspaceHandler struct {
	library        *service.LibraryService
	uploadMaxBytes int64
	logger         *slog.Logger
}

// NewWorkspaceHandler создаёт обработчик страницы библиотеки.
func NewWorkspaceHandler(library *service.LibraryService, uploadMaxBytes int64, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		library:        library,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger.With(slog.String("component", "ui.workspace")),
	}
}

// HandlePage обрабатывает GET / - полная страница.
// Параметр ask=<n> подставляет n-й пример вопроса в поле чата.
func (h *WorkspaceHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "")
}

// HandleLibraryPartial обрабатывает GET /partials/library.
func (h *WorkspaceHandler) HandleLibraryPartial(w http.ResponseWriter, r *http.Request) {
	d := h.buildPage(r.Context(), uimiddleware.SelectionFromContext(r.Context()), 0)
	h.render(w, r, http.StatusOK, views.Library(d.Library))
}

// HandleViewerPartial обрабатывает GET /partials/viewer.
func (h *WorkspaceHandler) HandleViewerPartial(w http.ResponseWriter, r *http.Request) {
	d := h.buildPage(r.Context(), uimiddleware.SelectionFromContext(r.Context()), 0)
	h.render(w, r, http.StatusOK, views.Viewer(d.Viewer))
}

// HandleChatPartial обрабатывает GET /partials/chat.
func (h *WorkspaceHandler) HandleChatPartial(w http.ResponseWriter, r *http.Request) {
	d := h.buildPage(r.Context(), uimiddleware.SelectionFromContext(r.Context()), askParam(r))
	h.render(w, r, http.StatusOK, views.Chat(d.Chat))
}

// HandleSelect обрабатывает POST /documents/{id}/select.
func (h *WorkspaceHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.library.Find(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.mutationFailed(w, r, "select", err)
		return
	}
	uimiddleware.SelectionFromContext(ctx).Set(doc)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleUpload обрабатывает POST /documents - multipart-форма с полем "file".
func (h *WorkspaceHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.renderPage(w, r, http.StatusRequestEntityTooLarge,
				i18n.Tf(r.Context(), "error.invalid_upload", err.Error()))
			return
		}
		h.renderPage(w, r, http.StatusBadRequest, i18n.T(r.Context(), "error.no_file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.mutationFailed(w, r, "upload", err)
		return
	}

	_, err = h.library.Upload(r.Context(), model.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		h.mutationFailed(w, r, "upload", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleDelete обрабатывает POST /documents/{id}/delete.
func (h *WorkspaceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.library.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.mutationFailed(w, r, "delete", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleProcess обрабатывает POST /documents/{id}/process.
func (h *WorkspaceHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.library.Find(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.mutationFailed(w, r, "process", err)
		return
	}
	if _, err := h.library.Process(ctx, doc); err != nil {
		h.mutationFailed(w, r, "process", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// mutationFailed перерисовывает страницу с сообщением об ошибке мутации.
func (h *WorkspaceHandler) mutationFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status, banner := http.StatusBadGateway, ""

	switch {
	case errors.Is(err, service.ErrNotFound):
		status, banner = http.StatusNotFound, i18n.T(ctx, "error.not_found")
	case errors.Is(err, service.ErrInvalidUpload):
		status, banner = http.StatusBadRequest, i18n.Tf(ctx, "error.invalid_upload", err.Error())
	case op == "select":
		banner = i18n.Tf(ctx, "error.list", err.Error())
	default:
		banner = i18n.Tf(ctx, "error."+op, err.Error())
	}

	h.logger.Warn("Ошибка операции с документом",
		slog.String("operation", op),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	h.renderPage(w, r, status, banner)
}

// renderPage рендерит полную страницу.
func (h *WorkspaceHandler) renderPage(w http.ResponseWriter, r *http.Request, status int, banner string) {
	d := h.buildPage(r.Context(), uimiddleware.SelectionFromContext(r.Context()), askParam(r))
	d.Banner = banner
	h.render(w, r, status, views.Page(d))
}

func (h *WorkspaceHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга", slog.String("error", err.Error()))
	}
}

// buildPage собирает данные панелей. Список документов и статус текущего
// выбора запрашиваются параллельно; если согласование со списком сменило
// выбор, статус запрашивается для нового документа.
func (h *WorkspaceHandler) buildPage(ctx context.Context, sel *selection.Store, ask int) views.PageData {
	before := sel.Get()

	var (
		docs      query.Result[[]model.Document]
		processed query.Result[bool]
		wg        sync.WaitGroup
	)
	wg.Go(func() {
		docs = h.library.Documents(ctx, sel)
	})
	if before.Selected {
		wg.Go(func() {
			processed = h.library.IsProcessed(ctx, before.Document)
		})
	}
	wg.Wait()

	st := sel.Get()
	if st.Selected && (!before.Selected || st.Document.ID != before.Document.ID) {
		processed = h.library.IsProcessed(ctx, st.Document)
	}

	return views.PageData{
		Library: views.LibraryData{Documents: docs, SelectedID: st.ID()},
		Viewer:  views.ViewerData{Selection: st, Processed: processed},
		Chat:    views.ChatData{Selection: st, Processed: processed, Ask: ask},
	}
}

// askParam извлекает номер примера вопроса из ?ask=<n>.
func askParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("ask"))
	if err != nil {
		return 0
	}
	return n
}
