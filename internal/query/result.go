package query

import "time"

// Result - состояние запроса для отображения: данные или ошибка.
type Result[T any] struct {
	Data      T
	Err       error
	UpdatedAt time.Time
}

// OK сообщает, что запрос завершился успешно.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
