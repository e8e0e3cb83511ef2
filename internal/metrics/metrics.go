package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plant_analyzer"

// Recorder captures request outcomes for analyses and reports.
type Recorder struct {
	analyses          *prometheus.CounterVec
	inferenceDuration prometheus.Histogram
	reports           *prometheus.CounterVec
	reportBytes       prometheus.Counter
	cleanupFailures   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis requests by outcome.",
		}, []string{"outcome"}),
		inferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Latency of calls to the inference service.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Report requests by outcome.",
		}, []string{"outcome"}),
		reportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_bytes_total",
			Help:      "Bytes of PDF written to disk.",
		}),
		cleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Temporary files that could not be deleted.",
		}, []string{"kind"}),
	}
	collectors := []prometheus.Collector{r.analyses, r.inferenceDuration, r.reports, r.reportBytes, r.cleanupFailures}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (r *Recorder) RecordAnalysis(err error) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(outcome(err)).Inc()
}

func (r *Recorder) ObserveInference(d time.Duration) {
	if r == nil {
		return
	}
	r.inferenceDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordReport(size int64, err error) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues(outcome(err)).Inc()
	if err == nil && size > 0 {
		r.reportBytes.Add(float64(size))
	}
}

// RecordCleanupFailure counts a temp file left behind; kind is "upload" or
// "report".
func (r *Recorder) RecordCleanupFailure(kind string) {
	if r == nil {
		return
	}
	r.cleanupFailures.WithLabelValues(kind).Inc()
}
