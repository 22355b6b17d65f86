// language.go - обработчик переключения языка UI.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/anismabaziz/paper-mind/internal/ui/i18n"
)

// langCookieMaxAge - срок жизни cookie языка (1 год).
const langCookieMaxAge = 365 * 24 * time.Hour

// HandleSetLanguage обрабатывает POST /set-language.
// Устанавливает cookie "lang" и возвращает на предыдущую страницу этого сервера.
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if lang != "en" && lang != "ru" {
		lang = i18n.DefaultLang
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(langCookieMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, localRedirect(r), http.StatusSeeOther)
}

// localRedirect возвращает путь Referer на этот же сервер или "/".
func localRedirect(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
