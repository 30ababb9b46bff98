package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"face-analysis/internal/models"
	"face-analysis/internal/service/cache"
	"face-analysis/internal/service/imaging"
	"face-analysis/internal/service/joiner"
	"face-analysis/internal/service/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage - состояние конвейера анализа
type Stage string

const (
	StageCheckCache Stage = "check_cache"
	StageDetect     Stage = "detect"
	StageJoinGate   Stage = "join_gate"
	StageJoined     Stage = "joined"
	StageCacheWrite Stage = "cache_write"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Invoker вызывает функцию шлюза
type Invoker interface {
	Invoke(ctx context.Context, function string, payload interface{}) (json.RawMessage, error)
}

// HistoryRecorder сохраняет запись о запуске анализа
type HistoryRecorder interface {
	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
}

// Notifier получает переходы между состояниями. Не должен блокировать.
type Notifier interface {
	NotifyStage(analysisID string, stage Stage, payload map[string]interface{})
}

// Functions - имена функций на шлюзе
type Functions struct {
	Detection string
	Gender    string
	Emotion   string
}

// Config - параметры оркестратора
type Config struct {
	Functions   Functions
	CacheTTL    time.Duration
	JPEGQuality int
	MaxPixels   int
}

// Orchestrator проводит изображение через детекцию, пол и эмоции,
// склеивает результаты и кэширует их по содержимому входа.
type Orchestrator struct {
	cfg      Config
	cache    cache.Store
	invoker  Invoker
	keys     *cache.KeyDeriver
	metrics  *metrics.Metrics
	history  HistoryRecorder
	notifier Notifier
	log      *log.Helper
}

// Option настраивает необязательные зависимости
type Option func(*Orchestrator)

// WithMetrics подключает метрики
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithHistory подключает запись истории анализов
func WithHistory(h HistoryRecorder) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithNotifier подключает уведомления о стадиях
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// New создает оркестратор
func New(cfg Config, store cache.Store, invoker Invoker, keys *cache.KeyDeriver, logger log.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		cache:   store,
		invoker: invoker,
		keys:    keys,
		log:     log.NewHelper(log.With(logger, "module", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// trace - то, что узнали по ходу запуска, для истории
type trace struct {
	cacheKey string
	cacheHit bool
	phash    *uint64
}

// Handle - точка входа: сырые байты изображения на входе, JSON на выходе.
// Ошибки возвращаются телом {"error": ...}.
func (o *Orchestrator) Handle(ctx context.Context, raw []byte) []byte {
	result, err := o.Run(ctx, uuid.NewString(), raw)
	if err != nil {
		return ErrorBody(err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return ErrorBody(err)
	}
	return body
}

// Run выполняет анализ под заданным идентификатором
func (o *Orchestrator) Run(ctx context.Context, analysisID string, raw []byte) (*models.WorkflowResult, error) {
	start := time.Now()
	result, tr, err := o.execute(ctx, analysisID, raw)
	elapsed := time.Since(start)

	o.metrics.ObserveRequest(elapsed)

	if errors.Is(err, ErrEmptyRequest) {
		o.log.Warnf("анализ %s: пустой запрос", analysisID)
		o.notify(analysisID, StageFailed, map[string]interface{}{"error": ErrorMessage(err)})
		return nil, err
	}

	o.record(ctx, analysisID, tr, result, err, elapsed)

	if err != nil {
		o.log.Errorf("анализ %s завершился ошибкой: %v", analysisID, err)
		o.notify(analysisID, StageFailed, map[string]interface{}{"error": ErrorMessage(err)})
		return nil, err
	}

	o.log.Infof("анализ %s завершен: лиц=%d из_кэша=%t за %s",
		analysisID, result.NumFacesDetected, tr.cacheHit, elapsed)
	o.notify(analysisID, StageDone, map[string]interface{}{
		"num_faces": result.NumFacesDetected,
		"cache_hit": tr.cacheHit,
	})
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, analysisID string, raw []byte) (*models.WorkflowResult, *trace, error) {
	tr := &trace{}
	if len(raw) == 0 {
		return nil, tr, ErrEmptyRequest
	}

	// CHECK_CACHE
	tr.cacheKey = o.keys.Derive(raw)
	o.notify(analysisID, StageCheckCache, map[string]interface{}{"cache_key": tr.cacheKey})

	cached, ok, err := o.cache.Get(ctx, tr.cacheKey)
	if err != nil {
		o.metrics.ObserveCacheLookup(metrics.CacheError)
		return nil, tr, fmt.Errorf("%w: %v", ErrCacheBackend, err)
	}
	if ok {
		o.metrics.ObserveCacheLookup(metrics.CacheHit)
		o.log.Infof("анализ %s: результат из кэша %s", analysisID, tr.cacheKey)
		tr.cacheHit = true
		return cached, tr, nil
	}
	o.metrics.ObserveCacheLookup(metrics.CacheMiss)

	// DETECT
	o.notify(analysisID, StageDetect, nil)
	prepared, err := imaging.Prepare(raw, o.cfg.JPEGQuality, o.cfg.MaxPixels)
	if err != nil {
		return nil, tr, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	tr.phash = &prepared.PHash

	detectionRaw, err := o.call(ctx, o.cfg.Functions.Detection, prepared.DetectionRequest())
	if err != nil {
		return nil, tr, err
	}
	var detection models.DetectionResult
	if err := decodeResponse(o.cfg.Functions.Detection, detectionRaw, &detection); err != nil {
		return nil, tr, err
	}
	o.log.Debugf("анализ %s: обнаружено лиц %d", analysisID, detection.NumFacesDetected)

	// JOIN_GATE
	o.notify(analysisID, StageJoinGate, map[string]interface{}{"num_faces": detection.NumFacesDetected})
	gender, emotion, err := o.classify(ctx, detectionRaw)
	if err != nil {
		return nil, tr, err
	}

	// JOINED
	faces, err := joiner.Join(&detection, gender, emotion)
	if err != nil {
		return nil, tr, err
	}
	result := &models.WorkflowResult{
		NumFacesDetected: detection.NumFacesDetected,
		Faces:            faces,
	}
	o.notify(analysisID, StageJoined, map[string]interface{}{"num_faces": len(faces)})

	// CACHE_WRITE
	o.notify(analysisID, StageCacheWrite, nil)
	if err := o.cache.Set(ctx, tr.cacheKey, result, o.cfg.CacheTTL); err != nil {
		return nil, tr, fmt.Errorf("%w: %v", ErrCacheBackend, err)
	}

	return result, tr, nil
}

// classify параллельно вызывает функции пола и эмоций.
// Обе получают ответ детекции без изменений. Ошибка одной отменяет другую.
func (o *Orchestrator) classify(ctx context.Context, detectionRaw json.RawMessage) (*models.GenderResult, *models.EmotionResult, error) {
	var (
		gender  models.GenderResult
		emotion models.EmotionResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := o.call(gctx, o.cfg.Functions.Gender, detectionRaw)
		if err != nil {
			return err
		}
		return decodeResponse(o.cfg.Functions.Gender, raw, &gender)
	})
	g.Go(func() error {
		raw, err := o.call(gctx, o.cfg.Functions.Emotion, detectionRaw)
		if err != nil {
			return err
		}
		return decodeResponse(o.cfg.Functions.Emotion, raw, &emotion)
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return &gender, &emotion, nil
}

// call вызывает функцию и проверяет ответ на {"error": ...}
func (o *Orchestrator) call(ctx context.Context, function string, payload interface{}) (json.RawMessage, error) {
	start := time.Now()

	raw, err := o.invoker.Invoke(ctx, function, payload)
	if err != nil {
		o.metrics.ObserveInvocation(function, metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	if err := checkApplicationError(function, raw); err != nil {
		outcome := metrics.OutcomeError
		var appErr *ApplicationError
		if errors.As(err, &appErr) {
			outcome = metrics.OutcomeAppError
			o.log.Errorf("функция %s вернула ошибку: %s", function, appErr.message())
		}
		o.metrics.ObserveInvocation(function, outcome, time.Since(start))
		return nil, err
	}

	o.metrics.ObserveInvocation(function, metrics.OutcomeOK, time.Since(start))
	return raw, nil
}

func checkApplicationError(function string, raw json.RawMessage) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, function, err)
	}
	if envelope == nil {
		return fmt.Errorf("%w: %s: пустой ответ", ErrMalformedResponse, function)
	}
	if payload, ok := envelope["error"]; ok {
		return &ApplicationError{Function: function, Payload: payload}
	}
	return nil
}

func decodeResponse(function string, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, function, err)
	}
	return nil
}

func (o *Orchestrator) notify(analysisID string, stage Stage, payload map[string]interface{}) {
	if o.notifier == nil {
		return
	}
	o.notifier.NotifyStage(analysisID, stage, payload)
}

// record пишет историю. Ошибка записи не влияет на результат анализа.
func (o *Orchestrator) record(ctx context.Context, analysisID string, tr *trace, result *models.WorkflowResult, runErr error, elapsed time.Duration) {
	if o.history == nil {
		return
	}

	analysis := &models.Analysis{
		ID:         analysisID,
		CacheKey:   tr.cacheKey,
		Status:     models.AnalysisStatusCompleted,
		CacheHit:   tr.cacheHit,
		DurationMs: elapsed.Milliseconds(),
	}
	if tr.phash != nil {
		v := int64(*tr.phash)
		analysis.PHash = &v
	}
	if result != nil {
		analysis.NumFaces = result.NumFacesDetected
	}
	if runErr != nil {
		msg := ErrorMessage(runErr)
		analysis.Status = models.AnalysisStatusFailed
		analysis.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := o.history.CreateAnalysis(ctx, analysis); err != nil {
		o.log.Warnf("не удалось сохранить историю анализа %s: %v", analysisID, err)
	}
}
