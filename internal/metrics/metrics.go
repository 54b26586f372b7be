// ============================================================================
// Mimic Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Count and time what the scheduler does and expose it on /metrics
//
// Metrics:
//
//   1. Counters:
//      - mimic_actions_dispatched_total{state}: actions entered, per target state
//      - mimic_actions_preempted_total{state}: run phases cut short by an interrupt
//      - mimic_events_captured_total: events accepted into the capture buffer
//      - mimic_events_dropped_total: events lost because the buffer was full
//
//   2. Histograms:
//      - mimic_action_duration_seconds{state}: enter to exit, per state
//      - mimic_replay_lag_seconds: how late each replayed event was injected
//
//   3. Gauges:
//      - mimic_queue_depth{queue}: interrupt / scripted / events backlog
//
// Example queries:
//
//   # replay precision, 99th percentile
//   histogram_quantile(0.99, rate(mimic_replay_lag_seconds_bucket[5m]))
//
//   # share of replays cut short by hotkeys
//   rate(mimic_actions_preempted_total{state="replaying"}[5m])
//     / rate(mimic_actions_dispatched_total{state="replaying"}[5m])
//
// A nil *Collector is valid and records nothing, so components can be built
// without instrumentation.
//
// ============================================================================

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mimic"

// Collector holds every mimic metric
type Collector struct {
	actionsDispatched *prometheus.CounterVec
	actionsPreempted  *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec

	eventsCaptured prometheus.Counter
	eventsDropped  prometheus.Counter
	replayLag      prometheus.Histogram

	queueDepth *prometheus.GaugeVec
}

// NewCollector creates the metrics and registers them with reg.
// A nil reg means prometheus.DefaultRegisterer. Registering twice with the
// same registry panics.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		actionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Total number of actions dispatched, by target state",
		}, []string{"state"}),
		actionsPreempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_preempted_total",
			Help:      "Total number of actions preempted by interrupts, by target state",
		}, []string{"state"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time from entering to leaving a state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		eventsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_captured_total",
			Help:      "Total number of input events captured while recording",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of captured events dropped because the buffer was full or the key has no virtual-key code",
		}),
		replayLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_lag_seconds",
			Help:      "Delay between an event's scheduled and actual injection time",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of items waiting in each queue",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		c.actionsDispatched,
		c.actionsPreempted,
		c.actionDuration,
		c.eventsCaptured,
		c.eventsDropped,
		c.replayLag,
		c.queueDepth,
	)
	return c
}

// ActionDispatched counts an action entering its target state
func (c *Collector) ActionDispatched(s types.State) {
	if c == nil {
		return
	}
	c.actionsDispatched.WithLabelValues(s.String()).Inc()
}

// ActionPreempted counts a run phase abandoned for a pending interrupt
func (c *Collector) ActionPreempted(s types.State) {
	if c == nil {
		return
	}
	c.actionsPreempted.WithLabelValues(s.String()).Inc()
}

// ObserveActionDuration records how long an action occupied its state
func (c *Collector) ObserveActionDuration(s types.State, d time.Duration) {
	if c == nil {
		return
	}
	c.actionDuration.WithLabelValues(s.String()).Observe(d.Seconds())
}

// EventCaptured counts an event accepted into the capture buffer
func (c *Collector) EventCaptured() {
	if c == nil {
		return
	}
	c.eventsCaptured.Inc()
}

// EventDropped counts an event the capture buffer had no room for
func (c *Collector) EventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}

// ObserveReplayLag records how late an event was injected
func (c *Collector) ObserveReplayLag(d time.Duration) {
	if c == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	c.replayLag.Observe(d.Seconds())
}

// SetQueueDepth updates the backlog gauge for one queue
func (c *Collector) SetQueueDepth(queue string, n int) {
	if c == nil {
		return
	}
	c.queueDepth.WithLabelValues(queue).Set(float64(n))
}

// ============================================================================
// HTTP exposition
// ============================================================================

// Handler returns the /metrics handler for g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is cancelled
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
