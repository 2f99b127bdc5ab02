package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/MimeLyc/taskagent/internal/agent"
	"github.com/MimeLyc/taskagent/internal/tools"
)

const namespace = "taskagent"

// Recorder collects agent loop metrics in its own registry.
// It implements agent.Metrics.
type Recorder struct {
	registry *prometheus.Registry

	// StageDuration gateway stage latency in seconds
	StageDuration *prometheus.HistogramVec
	// ToolDuration tool call latency in seconds
	ToolDuration *prometheus.HistogramVec
	// ToolCalls tool calls by result: ok | tool_error | failed
	ToolCalls *prometheus.CounterVec
	// Runs finished runs by outcome
	Runs *prometheus.CounterVec
	// RunSteps completed steps per run
	RunSteps prometheus.Histogram
	// RunDuration run wall time in seconds
	RunDuration prometheus.Histogram
}

// NewRecorder creates a recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Agent stage duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "status"}, // status: ok | error
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool calls by result",
			},
			[]string{"tool", "result"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished runs by outcome",
			},
			[]string{"outcome"},
		),
		RunSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Completed loop iterations per run",
			Buckets:   prometheus.LinearBuckets(1, 1, 15),
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Run wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	r.registry.MustRegister(
		r.StageDuration, r.ToolDuration, r.ToolCalls,
		r.Runs, r.RunSteps, r.RunDuration,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveStage(phase agent.Phase, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.StageDuration.WithLabelValues(phase.String(), status).Observe(d.Seconds())
}

func (r *Recorder) ObserveTool(name string, d time.Duration, result tools.ToolResult, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
	case result.IsError:
		outcome = "tool_error"
	}
	r.ToolDuration.WithLabelValues(name).Observe(d.Seconds())
	r.ToolCalls.WithLabelValues(name, outcome).Inc()
}

func (r *Recorder) ObserveRun(outcome agent.Outcome, steps int, d time.Duration) {
	r.Runs.WithLabelValues(outcome.String()).Inc()
	r.RunSteps.Observe(float64(steps))
	r.RunDuration.Observe(d.Seconds())
}

// WritePrometheus writes all metrics to w in the Prometheus text format
func (r *Recorder) WritePrometheus(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the metrics to path, replacing it atomically
func (r *Recorder) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := r.WritePrometheus(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metrics file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
