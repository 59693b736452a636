package repository

import (
	"context"
	"sync"
)

// MemoryRepository хранит состояние пульта в памяти процесса. Используется, когда БД не настроена.
type MemoryRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{values: make(map[string]string)}
}

// GetSelectedCampaign возвращает идентификатор последней выбранной кампании.
func (r *MemoryRepository) GetSelectedCampaign(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.values[SelectedCampaignKey]
	if !ok {
		return "", ErrSelectionNotFound
	}
	return id, nil
}

// SetSelectedCampaign сохраняет идентификатор выбранной кампании.
func (r *MemoryRepository) SetSelectedCampaign(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[SelectedCampaignKey] = id
	return nil
}

// ClearSelectedCampaign удаляет сохранённую кампанию.
func (r *MemoryRepository) ClearSelectedCampaign(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, SelectedCampaignKey)
	return nil
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}
