package narrative

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records vendor request outcomes and latency.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	promptChars prometheus.Histogram
}

// NewMetrics registers the vendor metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyprompt_vendor_requests_total",
				Help: "Total number of story generation requests, partitioned by vendor and outcome.",
			},
			[]string{"vendor", "outcome", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyprompt_vendor_request_duration_seconds",
				Help:    "Latency of story generation requests.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
			},
			[]string{"vendor"},
		),
		promptChars: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "storyprompt_prompt_characters",
				Help:    "Length of prompts sent to vendors, in characters.",
				Buckets: prometheus.LinearBuckets(500, 500, 10),
			},
		),
	}
}

// Instrument wraps llm so every call is counted and timed under vendor.
// A nil Metrics returns llm unchanged.
func (m *Metrics) Instrument(vendor Vendor, llm LLM) LLM {
	if m == nil {
		return llm
	}
	return &instrumentedLLM{next: llm, vendor: vendor, metrics: m}
}

type instrumentedLLM struct {
	next    LLM
	vendor  Vendor
	metrics *Metrics
}

func (l *instrumentedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := l.next.Generate(ctx, prompt)
	l.metrics.duration.WithLabelValues(string(l.vendor)).Observe(time.Since(start).Seconds())
	l.metrics.promptChars.Observe(float64(len([]rune(prompt))))
	l.metrics.requests.WithLabelValues(string(l.vendor), outcome(err), statusLabel(err)).Inc()
	return text, err
}

func outcome(err error) string {
	var f *GenerationFailure
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &f) && f.TimedOut:
		return "timeout"
	default:
		return "error"
	}
}

func statusLabel(err error) string {
	var f *GenerationFailure
	if errors.As(err, &f) && f.StatusCode != 0 {
		return strconv.Itoa(f.StatusCode)
	}
	return ""
}
