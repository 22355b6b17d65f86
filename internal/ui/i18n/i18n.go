// Пакет i18n - интернационализация UI PaperMind.
// T(ctx, key) и Tf(ctx, key, args...) возвращают перевод для языка запроса.
// Поддерживаемые языки: English (en), Русский (ru).
// Язык определяется middleware: cookie "lang" → Accept-Language → "en".
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// LangCookieName - имя cookie с выбранным языком.
const LangCookieName = "lang"

// DefaultLang - язык по умолчанию и язык fallback для отсутствующих ключей.
const DefaultLang = "en"

// supported - поддерживаемые языки; первый - язык по умолчанию для matcher.
var supported = []language.Tag{language.English, language.Russian}

var matcher = language.NewMatcher(supported)

type contextKey struct{}

// localizer - язык запроса вместе с каталогами.
type localizer struct {
	bundle *Bundle
	lang   string
}

// Bundle - каталоги переводов. После загрузки только читается.
type Bundle struct {
	catalogs map[string]map[string]string
}

// Load загружает встроенные каталоги en и ru.
func Load(logger *slog.Logger) (*Bundle, error) {
	b := &Bundle{catalogs: make(map[string]map[string]string)}
	for _, tag := range supported {
		lang := tag.String()
		data, err := localeFS.ReadFile("locales/" + lang + ".json")
		if err != nil {
			return nil, fmt.Errorf("i18n: чтение каталога %s: %w", lang, err)
		}
		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("i18n: разбор каталога %s: %w", lang, err)
		}
		b.catalogs[lang] = messages
		logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return b, nil
}

// Translate возвращает перевод ключа. Отсутствующий ключ ищется в английском
// каталоге, затем возвращается как есть.
func (b *Bundle) Translate(lang, key string) string {
	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs[DefaultLang][key]; ok {
		return msg
	}
	return key
}

// Supported сообщает, есть ли каталог для языка.
func (b *Bundle) Supported(lang string) bool {
	_, ok := b.catalogs[lang]
	return ok
}

// Middleware определяет язык запроса и помещает его в контекст.
func (b *Bundle) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLang(r.Context(), b, b.detect(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (b *Bundle) detect(r *http.Request) string {
	if cookie, err := r.Cookie(LangCookieName); err == nil && b.Supported(cookie.Value) {
		return cookie.Value
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}
	return DefaultLang
}

// WithLang помещает язык и каталоги в контекст.
func WithLang(ctx context.Context, b *Bundle, lang string) context.Context {
	return context.WithValue(ctx, contextKey{}, localizer{bundle: b, lang: lang})
}

// Lang возвращает язык из контекста.
func Lang(ctx context.Context) string {
	if l, ok := ctx.Value(contextKey{}).(localizer); ok {
		return l.lang
	}
	return DefaultLang
}

// T возвращает перевод ключа для языка из контекста.
// Без каталогов в контексте возвращает ключ.
func T(ctx context.Context, key string) string {
	l, ok := ctx.Value(contextKey{}).(localizer)
	if !ok {
		return key
	}
	return l.bundle.Translate(l.lang, key)
}

// Tf - T с подстановкой аргументов.
func Tf(ctx context.Context, key string, args ...any) string {
	return formatFunc(T(ctx, key), args...)
}

// Формат-строки приходят из каталогов, go vet их не проверяет.
var formatFunc = fmt.Sprintf

// MatchLanguage выбирает "en" или "ru" по заголовку Accept-Language.
func MatchLanguage(acceptLanguage string) string {
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	return supported[idx].String()
}
