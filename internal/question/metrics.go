package question

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters exported for the question service. A nil *Metrics is a no-op.
type Metrics struct {
	created   prometheus.Counter
	conflicts prometheus.Counter
	updates   *prometheus.CounterVec
	lookups   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logbook",
			Name:      "questions_created_total",
			Help:      "Questions added to the logbook.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logbook",
			Name:      "question_conflicts_total",
			Help:      "Add attempts rejected because the question number already exists.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Name:      "status_updates_total",
			Help:      "Status updates by target status.",
		}, []string{"status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Name:      "title_lookups_total",
			Help:      "Title lookups by outcome (hit, miss, error).",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.conflicts, m.updates, m.lookups)
	}
	return m
}

func (m *Metrics) questionCreated() {
	if m != nil {
		m.created.Inc()
	}
}

func (m *Metrics) questionConflict() {
	if m != nil {
		m.conflicts.Inc()
	}
}

func (m *Metrics) statusUpdated(s Status) {
	if m != nil {
		m.updates.WithLabelValues(string(s)).Inc()
	}
}

func (m *Metrics) titleLookup(outcome string) {
	if m != nil {
		m.lookups.WithLabelValues(outcome).Inc()
	}
}
