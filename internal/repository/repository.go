package repository

import (
	"context"
	"face-analysis/internal/models"

	"github.com/jmoiron/sqlx"
)

// MaxListLimit - предел выборки истории за один запрос
const MaxListLimit = 100

// Repository инкапсулирует всю работу с базой данных
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает новый репозиторий
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateAnalysis сохраняет запись о запуске анализа
func (r *Repository) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analyses (id, cache_key, status, cache_hit, num_faces, phash, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, a.ID, a.CacheKey, a.Status, a.CacheHit, a.NumFaces, a.PHash, a.ErrorMessage, a.DurationMs)
	return err
}

// GetAnalysis получает запись по ID
func (r *Repository) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	var analysis models.Analysis
	err := r.db.GetContext(ctx, &analysis, `
		SELECT id, cache_key, status, cache_hit, num_faces, phash, error_message, duration_ms, created_at
		FROM analyses
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ListAnalyses возвращает последние записи, новые первыми
func (r *Repository) ListAnalyses(ctx context.Context, limit int) ([]models.Analysis, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	analyses := []models.Analysis{} // Пустой массив вместо nil
	err := r.db.SelectContext(ctx, &analyses, `
		SELECT id, cache_key, status, cache_hit, num_faces, phash, error_message, duration_ms, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// GetStats возвращает общую статистику
func (r *Repository) GetStats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_analyses,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE cache_hit) AS cache_hits,
			COALESCE(SUM(num_faces), 0) AS total_faces
		FROM analyses
	`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
