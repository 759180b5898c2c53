package workflow

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the workflow counters. A nil *Metrics records nothing.
type Metrics struct {
	transitions  *prometheus.CounterVec
	replacements prometheus.Counter
	events       *prometheus.CounterVec
}

// NewMetrics creates the workflow metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signflow_workflow_transitions_total",
				Help: "Committed status transitions by target (signer, signature) and new status.",
			},
			[]string{"target", "status"},
		),
		replacements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signflow_document_replacements_total",
			Help: "Signature documents replaced by their signed version.",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signflow_workflow_events_total",
				Help: "Inbound workflow events by source (callback, return) and result.",
			},
			[]string{"source", "result"},
		),
	}
	for _, c := range []prometheus.Collector{m.transitions, m.replacements, m.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) transition(target, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, status).Inc()
}

func (m *Metrics) replacement() {
	if m == nil {
		return
	}
	m.replacements.Inc()
}

func (m *Metrics) event(source string, err error) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(source, resultLabel(err)).Inc()
}
