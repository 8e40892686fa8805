package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdesk_http_requests_total",
			Help: "Total number of HTTP requests processed by the API.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantdesk_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	streamActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantdesk_stream_active",
			Help: "Number of open conversation event streams.",
		},
	)
	streamFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdesk_stream_frames_total",
			Help: "Frames written to conversation event streams.",
		},
		[]string{"type"},
	)
	streamDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantdesk_stream_dropped_total",
			Help: "Streams closed because the subscriber could not keep up.",
		},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdesk_messages_sent_total",
			Help: "Messages accepted by the API.",
		},
		[]string{"kind"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantdesk_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	channelReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantdesk_channel_reconnects_total",
			Help: "Reconnect attempts scheduled by the client push channel.",
		},
	)
	channelState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenantdesk_channel_state",
			Help: "Client push channel state (1 for the current state).",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		streamActive,
		streamFramesTotal,
		streamDroppedTotal,
		messagesSentTotal,
		amqpPublishErrorsTotal,
		channelReconnectsTotal,
		channelState,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// HTTPMiddleware считает запросы по шаблону маршрута chi, а не по сырому пути.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func IncStreamActive() { streamActive.Inc() }
func DecStreamActive() { streamActive.Dec() }

func IncStreamFrame(frameType string) {
	streamFramesTotal.WithLabelValues(frameType).Inc()
}

func IncStreamDropped() { streamDroppedTotal.Inc() }

func IncMessageSent(kind string) {
	messagesSentTotal.WithLabelValues(kind).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncChannelReconnect() { channelReconnectsTotal.Inc() }

// SetChannelState выставляет 1 текущему состоянию и 0 остальным.
func SetChannelState(current string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		channelState.WithLabelValues(s).Set(v)
	}
}
