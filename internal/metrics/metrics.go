package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quakereadr"

// Metrics holds the collectors for feed polling. Each Metrics has its own
// registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	polls         *prometheus.CounterVec
	events        *prometheus.CounterVec
	entries       prometheus.Gauge
	lastSuccessTS prometheus.Gauge
	pollDur       prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polls_total",
		Help:      "Number of feed polls by status",
	}, []string{"status"})
	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entity_events_total",
		Help:      "Number of entity lifecycle callbacks by kind",
	}, []string{"kind"})
	m.entries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "entries",
		Help:      "Entries held after the last successful poll",
	})
	m.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last poll that did not fail",
	})
	m.pollDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Time spent fetching and processing the feed",
		Buckets:   prometheus.DefBuckets,
	})

	m.registry.MustRegister(
		m.polls, m.events, m.entries, m.lastSuccessTS, m.pollDur,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePoll records one finished poll. status is the feed status name.
func (m *Metrics) ObservePoll(status string, failed bool, entries int, took time.Duration) {
	m.polls.WithLabelValues(status).Inc()
	m.pollDur.Observe(took.Seconds())
	if failed {
		return
	}
	m.entries.Set(float64(entries))
	m.lastSuccessTS.SetToCurrentTime()
}

// ObserveEvent counts one lifecycle callback of the given kind.
func (m *Metrics) ObserveEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics and /healthz.
type Server struct {
	server *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
}

func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
