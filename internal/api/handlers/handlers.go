package handlers

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"face-analysis/internal/models"
	"face-analysis/internal/repository"
	"face-analysis/internal/service/joiner"
	"face-analysis/internal/service/orchestrator"
	"face-analysis/pkg/faas_client"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// HeaderAnalysisID - заголовок с идентификатором анализа
const HeaderAnalysisID = "X-Analysis-ID"

// MaxImageBytes - предел размера загружаемого изображения
const MaxImageBytes = 32 << 20

// Analyzer выполняет анализ изображения
type Analyzer interface {
	Handle(ctx context.Context, raw []byte) []byte
	Run(ctx context.Context, analysisID string, raw []byte) (*models.WorkflowResult, error)
}

// HealthCheck - проверка одной зависимости
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler содержит все зависимости для обработки HTTP запросов
type Handler struct {
	analyzer Analyzer
	repo     repository.AnalysisRepository // nil, если история отключена
	checks   []HealthCheck
	log      *log.Helper
}

// NewHandler создает новый handler с зависимостями
func NewHandler(
	analyzer Analyzer,
	repo repository.AnalysisRepository,
	logger log.Logger,
	checks ...HealthCheck,
) *Handler {
	return &Handler{
		analyzer: analyzer,
		repo:     repo,
		checks:   checks,
		log:      log.NewHelper(log.With(logger, "module", "handlers")),
	}
}

// ============ ФУНКЦИЯ ============

// HandleFunction - вход в стиле функции шлюза: тело запроса - изображение,
// ответ всегда 200, ошибки передаются телом {"error": ...}
func (h *Handler) HandleFunction(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxImageBytes+1))
	if err == nil && len(raw) > MaxImageBytes {
		err = errImageTooLarge
	}
	if err != nil {
		c.Data(http.StatusOK, "application/json", orchestrator.ErrorBody(err))
		return
	}
	c.Data(http.StatusOK, "application/json", h.analyzer.Handle(c.Request.Context(), raw))
}

// ============ АНАЛИЗ ============

// HandleAnalyze запускает анализ изображения из тела запроса
// или из поля image multipart формы
func (h *Handler) HandleAnalyze(c *gin.Context) {
	analysisID := c.GetHeader(HeaderAnalysisID)
	if analysisID == "" {
		analysisID = uuid.NewString()
	} else if _, err := uuid.Parse(analysisID); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Неверный " + HeaderAnalysisID,
		})
		return
	}
	c.Header(HeaderAnalysisID, analysisID)

	raw, err := readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.analyzer.Run(c.Request.Context(), analysisID, raw)
	if err != nil {
		c.Data(statusFor(err), "application/json", orchestrator.ErrorBody(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

var errImageTooLarge = errors.New("Изображение слишком большое")

func readImage(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("image")
		if err != nil {
			return nil, errors.New("Поле image обязательно")
		}
		if file.Size > MaxImageBytes {
			return nil, errImageTooLarge
		}
		return readFormFile(file)
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxImageBytes+1))
	if err != nil {
		return nil, errors.New("Ошибка чтения тела запроса")
	}
	if len(raw) > MaxImageBytes {
		return nil, errImageTooLarge
	}
	return raw, nil
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, errors.New("Ошибка чтения файла")
	}
	defer f.Close()
	return io.ReadAll(f)
}

// statusFor сопоставляет ошибку анализа с HTTP статусом
func statusFor(err error) int {
	var (
		appErr    *orchestrator.ApplicationError
		statusErr *faas_client.StatusError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, orchestrator.ErrEmptyRequest), errors.Is(err, orchestrator.ErrImageDecode):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrCacheBackend):
		return http.StatusServiceUnavailable
	case errors.As(err, &appErr),
		errors.As(err, &statusErr),
		errors.As(err, &netErr),
		errors.Is(err, joiner.ErrJoinMismatch),
		errors.Is(err, orchestrator.ErrMalformedResponse),
		errors.Is(err, faas_client.ErrUnexpectedContentType),
		errors.Is(err, faas_client.ErrInvalidResponse),
		errors.Is(err, faas_client.ErrResponseTooLarge),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ============ ИСТОРИЯ ============

func (h *Handler) historyEnabled(c *gin.Context) bool {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "История анализов отключена",
		})
		return false
	}
	return true
}

// HandleGetAnalysis возвращает запись об анализе
func (h *Handler) HandleGetAnalysis(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Неверный ID",
		})
		return
	}

	analysis, err := h.repo.GetAnalysis(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Анализ не найден",
		})
		return
	}
	if err != nil {
		h.log.Errorf("ошибка чтения анализа %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// HandleListAnalyses возвращает последние анализы, ?limit=N
func (h *Handler) HandleListAnalyses(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	limit := repository.MaxListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "Неверный limit",
			})
			return
		}
		limit = n
	}

	analyses, err := h.repo.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		h.log.Errorf("ошибка чтения истории: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	if analyses == nil {
		analyses = []models.Analysis{}
	}

	c.JSON(http.StatusOK, analyses)
}

// ============ STATS ============

// HandleGetStats возвращает общую статистику
func (h *Handler) HandleGetStats(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	stats, err := h.repo.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ============ HEALTH ============

// HandleHealth проверяет зависимости сервиса
func (h *Handler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.log.Warnf("проверка %s не пройдена: %v", check.Name, err)
			components[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[check.Name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     state,
		"components": components,
	})
}
