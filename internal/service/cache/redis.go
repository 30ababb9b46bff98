package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"face-analysis/internal/models"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RedisStore управляет кэшированием результатов через Redis
type RedisStore struct {
	client *redis.Client
	log    *log.Helper
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Pinger = (*RedisStore)(nil)
)

// NewRedisStore создает клиент Redis и проверяет подключение.
// Возвращаемая функция закрывает соединение.
func NewRedisStore(addr, password string, db int, logger log.Logger) (*RedisStore, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	helper := log.NewHelper(log.With(logger, "module", "cache/redis"))
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Errorf("ошибка закрытия Redis: %v", err)
		}
	}

	return NewRedisStoreWithClient(client, logger), cleanup, nil
}

// NewRedisStoreWithClient оборачивает уже созданный клиент
func NewRedisStoreWithClient(client *redis.Client, logger log.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		log:    log.NewHelper(log.With(logger, "module", "cache/redis")),
	}
}

// Get получает результат анализа из кэша
func (s *RedisStore) Get(ctx context.Context, key string) (*models.WorkflowResult, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // Не найдено в кэше
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	result, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set сохраняет результат анализа с заданным временем жизни
func (s *RedisStore) Set(ctx context.Context, key string, value *models.WorkflowResult, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.log.Debugf("результат сохранен в кэш: key=%s ttl=%s", key, ttl)
	return nil
}

// Ping проверяет доступность Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
