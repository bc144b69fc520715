package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Forecast outcome labels
const (
	OutcomeOK                   = "ok"
	OutcomeInvalidSnapshot      = "invalid_snapshot"
	OutcomeInvalidConfiguration = "invalid_configuration"
	OutcomeTimeout              = "timeout"
)

// Narration status labels
const (
	NarrationGenerated = "generated"
	NarrationFallback  = "fallback"
	NarrationDisabled  = "disabled"
)

// Cache result labels
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	httpDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	forecastDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5}
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ForecastsTotal    *prometheus.CounterVec
	ForecastDuration  prometheus.Histogram
	TrialsTotal       prometheus.Counter
	CappedTrialsTotal prometheus.Counter

	NarrationsTotal    *prometheus.CounterVec
	CacheRequestsTotal *prometheus.CounterVec
	AtRiskAlertsTotal  prometheus.Counter
}

// New registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goal_service_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goal_service_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: httpDurationBuckets,
		}, []string{"method", "route"}),
		ForecastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goal_service_forecasts_total",
			Help: "Goal forecasts by outcome",
		}, []string{"outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goal_service_forecast_duration_seconds",
			Help:    "Wall time of one Monte Carlo forecast",
			Buckets: forecastDurationBuckets,
		}),
		TrialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goal_service_forecast_trials_total",
			Help: "Simulated trials across all forecasts",
		}),
		CappedTrialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goal_service_forecast_capped_trials_total",
			Help: "Trials that hit the month cap without reaching the goal",
		}),
		NarrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goal_service_narrations_total",
			Help: "Timeline interpretations by status",
		}, []string{"status"}),
		CacheRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goal_service_timeline_cache_requests_total",
			Help: "Timeline cache lookups by result",
		}, []string{"result"}),
		AtRiskAlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goal_service_at_risk_alerts_total",
			Help: "At-risk goal alerts sent",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.ForecastsTotal, m.ForecastDuration, m.TrialsTotal, m.CappedTrialsTotal,
		m.NarrationsTotal, m.CacheRequestsTotal, m.AtRiskAlertsTotal,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveForecast records a forecast run and its outcome
func (m *Metrics) ObserveForecast(elapsed time.Duration, result *forecast.Result, err error) {
	m.ForecastsTotal.WithLabelValues(ForecastOutcome(err)).Inc()
	if err != nil {
		return
	}
	m.ForecastDuration.Observe(elapsed.Seconds())
	m.TrialsTotal.Add(float64(result.Simulations))
	m.CappedTrialsTotal.Add(float64(result.CappedTrials))
}

// ObserveNarration records how an interpretation was produced
func (m *Metrics) ObserveNarration(status string) {
	m.NarrationsTotal.WithLabelValues(status).Inc()
}

// ObserveCache records a timeline cache lookup
func (m *Metrics) ObserveCache(result string) {
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// ForecastOutcome maps a forecast error to its label
func ForecastOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case forecast.IsInvalidSnapshot(err):
		return OutcomeInvalidSnapshot
	case forecast.IsInvalidConfiguration(err):
		return OutcomeInvalidConfiguration
	case forecast.IsComputationTimeout(err):
		return OutcomeTimeout
	default:
		return "error"
	}
}
