package repository

import (
	"context"

	"face-analysis/internal/models"
)

// AnalysisRepository определяет контракт для работы с историей анализов
// Это позволяет легко мокать репозиторий в тестах
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]models.Analysis, error)
	GetStats(ctx context.Context) (*models.Stats, error)
}

// Проверяем что Repository реализует AnalysisRepository
var _ AnalysisRepository = (*Repository)(nil)
