package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"face-analysis/internal/models"
)

// ErrCorruptEntry - значение в кэше не удалось разобрать
var ErrCorruptEntry = errors.New("поврежденная запись кэша")

// Store - content-addressable хранилище результатов анализа.
// Промах не является ошибкой: Get возвращает (nil, false, nil).
// Set перезаписывает запись и сбрасывает срок жизни в now+ttl.
type Store interface {
	Get(ctx context.Context, key string) (*models.WorkflowResult, bool, error)
	Set(ctx context.Context, key string, value *models.WorkflowResult, ttl time.Duration) error
}

// Pinger реализуют бэкенды, доступность которых можно проверить
type Pinger interface {
	Ping(ctx context.Context) error
}

func encode(value *models.WorkflowResult) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("пустое значение для кэша")
	}
	return json.Marshal(value)
}

func decode(data []byte) (*models.WorkflowResult, error) {
	var result models.WorkflowResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return &result, nil
}
