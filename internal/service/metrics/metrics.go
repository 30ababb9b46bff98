package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты обращения к кэшу
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Исходы вызова функции
const (
	OutcomeOK       = "ok"
	OutcomeAppError = "app_error"
	OutcomeError    = "error"
)

// Metrics - метрики оркестратора. Методы безопасны для nil.
type Metrics struct {
	requests     prometheus.Counter
	processing   prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	invocations  *prometheus.HistogramVec
}

// New регистрирует метрики в reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Name: "face_analysis_requests_total",
			Help: "Total number of face analysis requests",
		}),
		processing: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_analysis_processing_seconds",
			Help:    "Time spent processing face analysis",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "face_analysis_cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		invocations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "face_analysis_function_duration_seconds",
			Help:    "Duration of gateway function calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"function", "outcome"}),
	}
}

// ObserveRequest учитывает один запрос и время его обработки
func (m *Metrics) ObserveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.requests.Inc()
	m.processing.Observe(d.Seconds())
}

// ObserveCacheLookup учитывает обращение к кэшу
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveInvocation учитывает вызов функции шлюза
func (m *Metrics) ObserveInvocation(function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(function, outcome).Observe(d.Seconds())
}
