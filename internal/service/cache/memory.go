package cache

import (
	"context"
	"sync"
	"time"

	"face-analysis/internal/models"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore - кэш в памяти процесса для разработки и тестов.
// Get и Set атомарны по ключу: доступ к карте идет под мьютексом,
// значения хранятся сериализованными, поэтому записи неизменяемы.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)

// NewMemoryStore создает пустой кэш в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get возвращает запись, если она есть и не истекла
func (s *MemoryStore) Get(_ context.Context, key string) (*models.WorkflowResult, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		// запись могли перезаписать между RUnlock и Lock
		if current, ok := s.entries[key]; ok && !s.now().Before(current.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	result, err := decode(entry.data)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set сохраняет запись и сбрасывает срок жизни
func (s *MemoryStore) Set(_ context.Context, key string, value *models.WorkflowResult, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{data: data, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Purge удаляет истекшие записи, возвращает число удаленных
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RunJanitor периодически вызывает Purge до отмены контекста
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Purge()
		}
	}
}

// Ping всегда успешен
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
