// Пакет static - встроенные статические ресурсы UI (CSS и JS).
package static

import (
	"embed"
	"net/http"
)

//go:embed css/*.css js/*.js
var content embed.FS

// FileSystem возвращает http.FileSystem для обработки запросов к /static/*.
func FileSystem() http.FileSystem {
	return http.FS(content)
}
