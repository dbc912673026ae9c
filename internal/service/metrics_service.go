package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the prediction pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	predictionsTotal   *prometheus.CounterVec
	trainingDuration   prometheus.Observer
	ruleEvaluations    prometheus.Counter
	ruleNotifications  prometheus.Counter
	notificationsTotal *prometheus.CounterVec
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	predictionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_total",
		Help: "Predictions served, by type and risk level",
	}, []string{"type", "risk_level"})

	trainingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "model_training_duration_seconds",
		Help:    "Wall time of model training runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	ruleEvaluations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rule_evaluations_total",
		Help: "Rule/student pairs evaluated",
	})

	ruleNotifications := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rule_notifications_total",
		Help: "Notifications created by rule triggers",
	})

	notificationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Notification delivery outcomes, by channel and status",
	}, []string{"channel", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration,
		predictionsTotal, trainingDuration, ruleEvaluations, ruleNotifications,
		notificationsTotal, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		dbQueryDuration:    dbQueryDuration,
		predictionsTotal:   predictionsTotal,
		trainingDuration:   trainingDuration,
		ruleEvaluations:    ruleEvaluations,
		ruleNotifications:  ruleNotifications,
		notificationsTotal: notificationsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordPrediction counts one served prediction.
func (m *MetricsService) RecordPrediction(predictionType, riskLevel string) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(predictionType, riskLevel).Inc()
}

// ObserveTraining records the wall time of one training run.
func (m *MetricsService) ObserveTraining(duration time.Duration) {
	if m == nil {
		return
	}
	m.trainingDuration.Observe(duration.Seconds())
}

// RecordRuleEvaluation accumulates rule batch statistics.
func (m *MetricsService) RecordRuleEvaluation(pairsEvaluated, notificationsCreated int) {
	if m == nil {
		return
	}
	m.ruleEvaluations.Add(float64(pairsEvaluated))
	m.ruleNotifications.Add(float64(notificationsCreated))
}

// RecordNotificationDelivery counts one delivery outcome.
func (m *MetricsService) RecordNotificationDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}
