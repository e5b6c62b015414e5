package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Publisher - то, что умеет рассылать события (совпадает с service.EventPublisher).
type Publisher interface {
	Publish(event string, payload interface{})
}

// Metrics собирает метрики Prometheus в собственном реестре.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	janitorRemoved  prometheus.Counter
}

// New регистрирует базовые коллекторы.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jandrishti_events_published_total",
		Help: "Realtime events published by type",
	}, []string{"type"})

	janitorRemoved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jandrishti_media_orphans_removed_total",
		Help: "Orphaned media files removed by the janitor",
	})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		eventsTotal,
		janitorRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		eventsTotal:     eventsTotal,
		janitorRemoved:  janitorRemoved,
	}
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RegisterGauge добавляет метрику, значение которой читается при сборе.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// ObserveHTTPRequest записывает длительность и статус запроса.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveEvent учитывает опубликованное событие.
func (m *Metrics) ObserveEvent(event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event).Inc()
}

// AddOrphansRemoved учитывает удалённые сборщиком файлы.
func (m *Metrics) AddOrphansRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.janitorRemoved.Add(float64(n))
}

// Middleware измеряет HTTP-запросы. Путь берётся из шаблона маршрута.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

type instrumentedPublisher struct {
	next    Publisher
	metrics *Metrics
}

// InstrumentPublisher оборачивает издателя событий счётчиком.
func InstrumentPublisher(next Publisher, m *Metrics) Publisher {
	return &instrumentedPublisher{next: next, metrics: m}
}

func (p *instrumentedPublisher) Publish(event string, payload interface{}) {
	p.metrics.ObserveEvent(event)
	p.next.Publish(event, payload)
}
