package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"

	"face-analysis/internal/models"
)

var (
	// ErrEmptyRequest - пустое тело запроса
	ErrEmptyRequest = errors.New("Empty request")
	// ErrImageDecode - тело запроса не является изображением
	ErrImageDecode = errors.New("Failed to decode image")
	// ErrCacheBackend - хранилище кэша недоступно
	ErrCacheBackend = errors.New("ошибка хранилища кэша")
	// ErrMalformedResponse - ответ функции не соответствует контракту
	ErrMalformedResponse = errors.New("некорректный ответ функции")
)

// ApplicationError - функция ответила {"error": ...}.
// Payload возвращается клиенту без изменений.
type ApplicationError struct {
	Function string
	Payload  json.RawMessage
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("функция %s вернула ошибку: %s", e.Function, e.message())
}

func (e *ApplicationError) message() string {
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil {
		return s
	}
	return string(e.Payload)
}

// ErrorMessage возвращает текст ошибки для клиента
func ErrorMessage(err error) string {
	var appErr *ApplicationError
	switch {
	case errors.Is(err, ErrEmptyRequest):
		return ErrEmptyRequest.Error()
	case errors.Is(err, ErrImageDecode):
		return ErrImageDecode.Error()
	case errors.As(err, &appErr):
		return appErr.message()
	}
	return "An unexpected error occurred: " + err.Error()
}

// ErrorBody формирует тело ответа {"error": ...}
func ErrorBody(err error) []byte {
	var appErr *ApplicationError
	if errors.As(err, &appErr) && json.Valid(appErr.Payload) {
		if body, mErr := json.Marshal(map[string]json.RawMessage{"error": appErr.Payload}); mErr == nil {
			return body
		}
	}

	body, _ := json.Marshal(models.ErrorResponse{Error: ErrorMessage(err)})
	return body
}
