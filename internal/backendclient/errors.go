package backendclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse - backend вернул 2xx, но тело ответа не соответствует
// контракту (некорректный JSON или нарушение схемы).
var ErrMalformedResponse = errors.New("некорректный ответ backend")

// Максимальная длина тела ответа, сохраняемая в StatusError.
const maxErrorBodyLen = 512

// StatusError - backend ответил статусом вне диапазона 2xx.
type StatusError struct {
	// Operation - имя операции клиента (ListDocuments, UploadDocument, ...)
	Operation string
	// StatusCode - HTTP статус ответа
	StatusCode int
	// Message - текст из поля "error" тела ответа, если backend его передал
	Message string
	// Body - начало тела ответа (для диагностики)
	Body string
}

// Error реализует интерфейс error.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: backend вернул статус %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: backend вернул статус %d: %s", e.Operation, e.StatusCode, e.Body)
}

// newStatusError собирает StatusError из ответа backend.
// Flask-backend оформляет ошибки как {"error": "..."}.
func newStatusError(op string, status int, body []byte) *StatusError {
	se := &StatusError{
		Operation:  op,
		StatusCode: status,
		Body:       truncate(strings.TrimSpace(string(body)), maxErrorBodyLen),
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Message = payload.Error
	}
	return se
}

// IsStatus проверяет, что err - StatusError с указанным кодом.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == status
}

// truncate обрезает строку до n байт.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
