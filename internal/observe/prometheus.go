package observe

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus turns pipeline events into counters and histograms.
type Prometheus struct {
	analyses     *prometheus.CounterVec
	completions  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	decodeStates *prometheus.CounterVec
	audits       prometheus.Counter
}

// NewPrometheus registers the engine metrics with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractengine",
			Name:      "analyses_total",
			Help:      "Analysis calls by outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractengine",
			Name:      "completion_calls_total",
			Help:      "Completion endpoint calls by operation and result.",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contractengine",
			Name:      "completion_duration_seconds",
			Help:      "Completion endpoint latency.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120, 180},
		}, []string{"op"}),
		decodeStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contractengine",
			Name:      "decode_states_total",
			Help:      "Response decoder states visited and whether they succeeded.",
		}, []string{"state", "result"}),
		audits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contractengine",
			Name:      "audit_findings_total",
			Help:      "Soft-expectation findings on materialized results.",
		}),
	}
	for _, c := range []prometheus.Collector{p.analyses, p.completions, p.latency, p.decodeStates, p.audits} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("observe: register metric: %w", err)
		}
	}
	return p, nil
}

func (p *Prometheus) OnEvent(_ context.Context, event Event) {
	switch event.Type {
	case EventCompletion:
		op, _ := event.Data[KeyOp].(string)
		p.completions.WithLabelValues(op, result(event.Data)).Inc()
		if d, ok := event.Data[KeyDuration].(time.Duration); ok {
			p.latency.WithLabelValues(op).Observe(d.Seconds())
		}
	case EventDecodeState:
		state, _ := event.Data[KeyState].(string)
		p.decodeStates.WithLabelValues(state, result(event.Data)).Inc()
	case EventAnalysisComplete, EventAnalysisFailed:
		outcome, _ := event.Data[KeyOutcome].(string)
		p.analyses.WithLabelValues(outcome).Inc()
	case EventAuditFinding:
		p.audits.Inc()
	}
}

func result(data map[string]any) string {
	if ok, _ := data[KeyOK].(bool); ok {
		return "ok"
	}
	return "error"
}
