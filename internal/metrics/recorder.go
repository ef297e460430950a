package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "mdshovel"

// Recorder owns the shovel's Prometheus metrics: operation outcome
// counters, the end-to-end latency histogram fed by the governor, and the
// per-call latency histogram fed by the store writer.
type Recorder struct {
	registry *prometheus.Registry

	started   prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter

	operationDuration prometheus.Histogram
	storeCallDuration *prometheus.HistogramVec

	server *http.Server
	logger *zap.Logger
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder(logger *zap.Logger) (*Recorder, error) {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		logger:   logger.Named("metrics"),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_started_total",
			Help:      "Total number of operations started",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_completed_total",
			Help:      "Total number of operations completed, success or failure",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_failed_total",
			Help:      "Total number of operations that failed",
		}),
		operationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "End-to-end duration of one four-step operation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		}),
		storeCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Duration of individual live store calls",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"call"}),
	}

	collectors := []prometheus.Collector{
		r.started, r.completed, r.failed, r.operationDuration, r.storeCallDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return r, nil
}

// OperationStarted increments the started counter.
func (r *Recorder) OperationStarted() {
	r.started.Inc()
}

// OperationCompleted records one finished operation. failed counts only
// when success is false; the end-to-end histogram observes every
// completion.
func (r *Recorder) OperationCompleted(elapsed time.Duration, success bool) {
	r.completed.Inc()
	if !success {
		r.failed.Inc()
	}
	r.operationDuration.Observe(elapsed.Seconds())
}

// StoreCall records the wall latency of one live store call. Dry-run calls
// never reach here.
func (r *Recorder) StoreCall(call string, elapsed time.Duration) {
	r.storeCallDuration.With(prometheus.Labels{"call": call}).Observe(elapsed.Seconds())
}

// Handler returns the exposition handler: GET /metrics renders the current
// snapshot; any other path is 404 and any other method 405, both closing
// the connection.
func (r *Recorder) Handler() http.Handler {
	render := promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/metrics" {
			w.Header().Set("Connection", "close")
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.Header().Set("Connection", "close")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		render.ServeHTTP(w, req)
	})
}

// Start serves the exposition endpoint on the given port. The listener is
// bound before returning so a busy port surfaces at startup.
func (r *Recorder) Start(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("metrics server failed to listen on port %d: %w", port, err)
	}

	r.server = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		r.logger.Info("metrics server listening", zap.Int("port", port))
		if err := r.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the exposition server down.
func (r *Recorder) Stop(ctx context.Context) error {
	if r.server != nil {
		return r.server.Shutdown(ctx)
	}
	return nil
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
