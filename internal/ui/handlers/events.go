// events.go - SSE endpoint обновлений UI.
// События: selection (сменился выбор сессии), files (инвалидирован список),
// status (инвалидирован статус обработки). Клиент перезапрашивает фрагменты панелей.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/service"
	uimiddleware "github.com/anismabaziz/paper-mind/internal/ui/middleware"
)

// Имена SSE-событий.
const (
	EventSelection = "selection"
	EventFiles     = "files"
	EventStatus    = "status"
)

// eventBuffer - ёмкость очереди событий одного клиента; при переполнении
// событие отбрасывается (клиент всё равно перезапросит панели по следующему).
const eventBuffer = 16

// EventsHandler - обработчик SSE endpoint.
type EventsHandler struct {
	library   *service.LibraryService
	keepalive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler создаёт обработчик SSE.
// keepalive - интервал комментариев-keepalive (PM_SSE_KEEPALIVE).
func NewEventsHandler(library *service.LibraryService, keepalive time.Duration, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		library:   library,
		keepalive: keepalive,
		logger:    logger.With(slog.String("component", "ui.events")),
	}
}

// EventForKey сопоставляет инвалидированный ключ кэша с SSE-событием.
func EventForKey(key query.Key) string {
	if key.HasPrefix(service.FilesKey) {
		return EventFiles
	}
	return EventStatus
}

// HandleEvents обрабатывает GET /events.
// Формат: event: <name>\ndata: {}\n\n. Завершается при отключении клиента.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sel := uimiddleware.SelectionFromContext(r.Context())
	if sel == nil {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Подписка до отправки заголовков
	events := make(chan string, eventBuffer)
	push := func(name string) {
		select {
		case events <- name:
		default:
		}
	}

	unsubSelection := sel.Subscribe(func(selection.State) { push(EventSelection) })
	defer unsubSelection()
	unsubCache := h.library.OnInvalidate(func(k query.Key) { push(EventForKey(k)) })
	defer unsubCache()

	// ResponseController находит Flusher через Unwrap() обёрток middleware
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	sessionID := uimiddleware.SessionID(ctx)
	h.logger.Debug("SSE клиент подключён", slog.String("session", sessionID))

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён", slog.String("session", sessionID))
			return
		case name := <-events:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: {}\n\n", name); err != nil {
				return
			}
			_ = rc.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}
