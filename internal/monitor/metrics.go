package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector metrics collector. All record methods are safe on a nil
// receiver so components can run without metrics.
type MetricsCollector struct {
	registry *prometheus.Registry

	// business
	chatMessagesTotal    *prometheus.CounterVec
	suggestionsTotal     *prometheus.CounterVec
	nudgesTotal          *prometheus.CounterVec
	cartMutationsTotal   *prometheus.CounterVec
	wishlistVotesTotal   *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	collaboratorTotal    *prometheus.CounterVec
	collaboratorDuration *prometheus.HistogramVec
	snapshotFailures     *prometheus.CounterVec

	// realtime
	wsConnections   prometheus.Gauge
	wsDroppedTotal  prometheus.Counter
	wsLimitedTotal  prometheus.Counter
	queueDepthGauge *prometheus.GaugeVec

	// http
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetricsCollector creates a collector on its own registry
func NewMetricsCollector(namespace string) *MetricsCollector {
	if namespace == "" {
		namespace = "groupcart"
	}

	mc := &MetricsCollector{registry: prometheus.NewRegistry()}
	mc.initMetrics(namespace)
	return mc
}

func (mc *MetricsCollector) initMetrics(ns string) {
	mc.chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "chat_messages_total",
			Help:      "Total number of inbound chat messages",
		},
		[]string{"translated"},
	)

	mc.suggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "suggestions_total",
			Help:      "Suggestion batches computed, by kind and path",
		},
		[]string{"path", "kind"},
	)

	mc.nudgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "nudges_total",
			Help:      "Nudge evaluations by outcome",
		},
		[]string{"outcome"},
	)

	mc.cartMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation",
		},
		[]string{"op"},
	)

	mc.wishlistVotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "wishlist_votes_total",
			Help:      "Wishlist votes by direction and whether they changed the tally",
		},
		[]string{"direction", "applied"},
	)

	mc.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notifications_total",
			Help:      "Notifications created by type",
		},
		[]string{"type"},
	)

	mc.collaboratorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "collaborator_requests_total",
			Help:      "Calls to external AI collaborators",
		},
		[]string{"service", "status"},
	)

	mc.collaboratorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "collaborator_request_duration_seconds",
			Help:      "Duration of external AI collaborator calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	mc.snapshotFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "snapshot_failures_total",
			Help:      "Failed snapshot writes by snapshot name",
		},
		[]string{"snapshot"},
	)

	mc.wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "websocket_connections",
			Help:      "Open websocket connections",
		},
	)

	mc.wsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "websocket_slow_clients_total",
			Help:      "Clients evicted because their send buffer was full",
		},
	)

	mc.wsLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rate_limited_total",
			Help:      "Requests and websocket events rejected by rate limiters",
		},
	)

	mc.queueDepthGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "queue_messages",
			Help:      "Queue counters by kind",
		},
		[]string{"kind"},
	)

	mc.httpRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	mc.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	mc.registry.MustRegister(
		mc.chatMessagesTotal,
		mc.suggestionsTotal,
		mc.nudgesTotal,
		mc.cartMutationsTotal,
		mc.wishlistVotesTotal,
		mc.notificationsTotal,
		mc.collaboratorTotal,
		mc.collaboratorDuration,
		mc.snapshotFailures,
		mc.wsConnections,
		mc.wsDroppedTotal,
		mc.wsLimitedTotal,
		mc.queueDepthGauge,
		mc.httpRequestTotal,
		mc.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the underlying registry, mainly for tests
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the registry in the prometheus text format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// RecordChatMessage counts an inbound chat message
func (mc *MetricsCollector) RecordChatMessage(translated bool) {
	if mc == nil {
		return
	}
	label := "false"
	if translated {
		label = "true"
	}
	mc.chatMessagesTotal.WithLabelValues(label).Inc()
}

// RecordSuggestion counts a suggestion batch. path is "combo" for the
// combo-priority path and "periodic" for the no-combo path.
func (mc *MetricsCollector) RecordSuggestion(path, kind string) {
	if mc == nil {
		return
	}
	mc.suggestionsTotal.WithLabelValues(path, kind).Inc()
}

// RecordNudge counts a nudge evaluation outcome
func (mc *MetricsCollector) RecordNudge(outcome string) {
	if mc == nil {
		return
	}
	mc.nudgesTotal.WithLabelValues(outcome).Inc()
}

// RecordCartMutation counts a cart mutation
func (mc *MetricsCollector) RecordCartMutation(op string) {
	if mc == nil {
		return
	}
	mc.cartMutationsTotal.WithLabelValues(op).Inc()
}

// RecordWishlistVote counts a vote
func (mc *MetricsCollector) RecordWishlistVote(direction int, applied bool) {
	if mc == nil {
		return
	}
	dir := "up"
	if direction < 0 {
		dir = "down"
	}
	a := "false"
	if applied {
		a = "true"
	}
	mc.wishlistVotesTotal.WithLabelValues(dir, a).Inc()
}

// RecordNotification counts a created notification
func (mc *MetricsCollector) RecordNotification(kind string) {
	if mc == nil {
		return
	}
	mc.notificationsTotal.WithLabelValues(kind).Inc()
}

// RecordCollaboratorCall records a call to an external AI collaborator
func (mc *MetricsCollector) RecordCollaboratorCall(service string, err error, duration time.Duration) {
	if mc == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	mc.collaboratorTotal.WithLabelValues(service, status).Inc()
	mc.collaboratorDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordSnapshotFailure counts a failed snapshot write
func (mc *MetricsCollector) RecordSnapshotFailure(name string, _ error) {
	if mc == nil {
		return
	}
	mc.snapshotFailures.WithLabelValues(name).Inc()
}

// ConnectionOpened increments the websocket gauge
func (mc *MetricsCollector) ConnectionOpened() {
	if mc == nil {
		return
	}
	mc.wsConnections.Inc()
}

// ConnectionClosed decrements the websocket gauge
func (mc *MetricsCollector) ConnectionClosed() {
	if mc == nil {
		return
	}
	mc.wsConnections.Dec()
}

// RecordSlowClient counts an evicted slow client
func (mc *MetricsCollector) RecordSlowClient() {
	if mc == nil {
		return
	}
	mc.wsDroppedTotal.Inc()
}

// RecordRateLimited counts a request or websocket event rejected by a limiter
func (mc *MetricsCollector) RecordRateLimited() {
	if mc == nil {
		return
	}
	mc.wsLimitedTotal.Inc()
}

// SetQueueStats exports queue counters
func (mc *MetricsCollector) SetQueueStats(sent, recv, dropped, failed int64) {
	if mc == nil {
		return
	}
	mc.queueDepthGauge.WithLabelValues("sent").Set(float64(sent))
	mc.queueDepthGauge.WithLabelValues("received").Set(float64(recv))
	mc.queueDepthGauge.WithLabelValues("dropped").Set(float64(dropped))
	mc.queueDepthGauge.WithLabelValues("failed").Set(float64(failed))
}

// RecordHTTPRequest records an HTTP request
func (mc *MetricsCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.httpRequestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	mc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
