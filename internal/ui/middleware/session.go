// Пакет middleware - HTTP middleware UI.
// session.go - сессия UI: чтение cookie, выдача новой сессии,
// хранилище выбора документа в контексте запроса.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/ui/session"
)

type contextKey string

const (
	contextKeySessionID contextKey = "ui_session_id"
	contextKeySelection contextKey = "ui_selection"
)

// Sessions - middleware сессий UI. Пропуск сессии не блокирует запрос:
// при отсутствии или повреждении cookie выдаётся новая сессия.
type Sessions struct {
	manager  *session.Manager
	registry *selection.Registry
	logger   *slog.Logger
}

// NewSessions создаёт middleware сессий.
func NewSessions(manager *session.Manager, registry *selection.Registry, logger *slog.Logger) *Sessions {
	return &Sessions{
		manager:  manager,
		registry: registry,
		logger:   logger.With(slog.String("component", "ui_session_middleware")),
	}
}

// Middleware помещает в контекст идентификатор сессии и её хранилище выбора.
func (s *Sessions) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := s.manager.FromRequest(r)
			if err != nil {
				s.logger.Debug("Повреждённый cookie сессии, выдаётся новая сессия",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
			}
			if data == nil {
				data = session.New()
				if err := s.manager.SetCookie(w, data); err != nil {
					s.logger.Error("Ошибка установки cookie сессии", slog.String("error", err.Error()))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
			}

			ctx := WithSession(r.Context(), data.ID, s.registry.Get(data.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession помещает сессию в контекст.
func WithSession(ctx context.Context, id string, store *selection.Store) context.Context {
	ctx = context.WithValue(ctx, contextKeySessionID, id)
	return context.WithValue(ctx, contextKeySelection, store)
}

// SessionID возвращает идентификатор сессии из контекста.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeySessionID).(string)
	return id
}

// SelectionFromContext возвращает хранилище выбора сессии (nil вне middleware).
func SelectionFromContext(ctx context.Context) *selection.Store {
	store, _ := ctx.Value(contextKeySelection).(*selection.Store)
	return store
}
