// Пакет views - HTML-компоненты UI (templ).
// Данные каждого компонента - чистая функция выбора и результатов запросов.
package views

import (
	"context"
	"net/url"
	"strconv"

	"github.com/anismabaziz/paper-mind/internal/domain/model"
	"github.com/anismabaziz/paper-mind/internal/query"
	"github.com/anismabaziz/paper-mind/internal/selection"
	"github.com/anismabaziz/paper-mind/internal/ui/i18n"
)

// viewerFragment скрывает панели встроенного PDF-просмотрщика.
const viewerFragment = "#toolbar=0&navpanes=0&scrollbar=0"

// exampleQuestionKeys - ключи каталога с примерами вопросов.
var exampleQuestionKeys = []string{"chat.example.1", "chat.example.2"}

// languages - языки переключателя в шапке.
var languages = []string{"en", "ru"}

// PageData - данные полной страницы.
type PageData struct {
	Library LibraryData
	Viewer  ViewerData
	Chat    ChatData
	// Banner - ошибка последней мутации ("" - нет ошибки).
	Banner string
}

// LibraryData - данные панели библиотеки.
type LibraryData struct {
	Documents  query.Result[[]model.Document]
	SelectedID string
}

// ViewerData - данные панели просмотра.
type ViewerData struct {
	Selection selection.State
	// Processed - статус обработки; не используется без выбора.
	Processed query.Result[bool]
}

// IsProcessed - документ обработан; ошибка статуса считается «не обработан».
func (d ViewerData) IsProcessed() bool {
	return d.Processed.OK() && d.Processed.Data
}

// ChatData - данные панели чата.
type ChatData struct {
	Selection selection.State
	Processed query.Result[bool]
	// Ask - номер примера вопроса для подстановки (1..N), 0 - без подстановки.
	Ask int
}

// ChatState - состояние панели чата.
type ChatState int

const (
	ChatNoSelection ChatState = iota
	ChatNotProcessed
	ChatReady
)

// State вычисляет состояние чата. Ошибка статуса считается «не обработан».
func (d ChatData) State() ChatState {
	switch {
	case !d.Selection.Selected:
		return ChatNoSelection
	case d.Processed.OK() && d.Processed.Data:
		return ChatReady
	default:
		return ChatNotProcessed
	}
}

// ViewerSrc возвращает адрес PDF для iframe.
func ViewerSrc(fileURL string) string {
	return fileURL + viewerFragment
}

// ProcessLabelKey возвращает ключ надписи кнопки обработки.
func ProcessLabelKey(processed bool) string {
	if processed {
		return "viewer.processed"
	}
	return "viewer.process"
}

// ExampleQuestion возвращает пример вопроса n (1..N) или "".
func ExampleQuestion(ctx context.Context, n int) string {
	if n < 1 || n > len(exampleQuestionKeys) {
		return ""
	}
	return i18n.T(ctx, exampleQuestionKeys[n-1])
}

func documentAction(id, action string) string {
	return "/documents/" + url.PathEscape(id) + "/" + action
}

// Prefill возвращает текст для поля ввода: пример вопроса Ask, если чат готов.
func (d ChatData) Prefill(ctx context.Context) string {
	if d.State() != ChatReady {
		return ""
	}
	return ExampleQuestion(ctx, d.Ask)
}

func askURL(n int) string {
	return "/?ask=" + strconv.Itoa(n)
}
