package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metricsNamespace = "mirror"

// Metrics groups the collectors updated by the agent loop. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	steps         *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	modelQueries  *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runIterations prometheus.Histogram
}

// NewMetrics registers the agent collectors on a fresh registry, along with
// the standard Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "agent_steps_total",
			Help:      "Steps processed by the agent loop, by kind.",
		}, []string{"kind"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations, by tool and outcome.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tool_duration_seconds",
			Help:      "Wall time of tool invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tool"}),
		modelQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "model_queries_total",
			Help:      "Model round-trips, by outcome.",
		}, []string{"status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "agent_runs_total",
			Help:      "Finished agent runs, by outcome.",
		}, []string{"outcome"}),
		runIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "agent_run_iterations",
			Help:      "Model round-trips per run.",
			Buckets:   prometheus.LinearBuckets(1, 4, 12),
		}),
	}
	reg.MustRegister(
		m.steps, m.toolCalls, m.toolDuration, m.modelQueries, m.runs, m.runIterations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for serving and for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveStep(kind string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTool(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) ObserveModelQuery(status string) {
	if m == nil {
		return
	}
	m.modelQueries.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRun(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runIterations.Observe(float64(iterations))
}

// ServeMetrics exposes the registry on addr under /metrics until ctx is
// canceled. The listener is bound before returning so address errors surface
// immediately.
func ServeMetrics(ctx context.Context, addr string, m *Metrics, logger *zap.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped unexpectedly", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("address", ln.Addr().String()))
	return ln.Addr(), nil
}
