package faas_client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedContentType - функция ответила не JSON и не octet-stream
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrInvalidResponse - тело ответа не является корректным JSON
	ErrInvalidResponse = errors.New("invalid response")
	// ErrResponseTooLarge - тело ответа больше MaxResponseBytes
	ErrResponseTooLarge = errors.New("response too large")
)

// StatusError - функция вернула не-2xx статус
type StatusError struct {
	Function   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("функция %s вернула ошибку %d: %s", e.Function, e.StatusCode, e.Body)
}
