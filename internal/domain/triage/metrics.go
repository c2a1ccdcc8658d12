package triage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the triage service.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	EscalationsTotal     *prometheus.CounterVec
	ProtocolMatchesTotal *prometheus.CounterVec
	ProtocolErrorsTotal  *prometheus.CounterVec
	RejectionsTotal      *prometheus.CounterVec
	CancellationsTotal   prometheus.Counter
	QueueDepth           *prometheus.GaugeVec
}

// NewMetrics registers the triage metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_classifications_total",
				Help: "Triage records created, by pathway and final level",
			},
			[]string{"pathway", "level"},
		),
		EscalationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_escalations_total",
				Help: "Classifications whose final level differs from the starting level",
			},
			[]string{"pathway", "from", "to"},
		),
		ProtocolMatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_protocol_matches_total",
				Help: "Protocol matches by protocol code",
			},
			[]string{"protocol"},
		),
		ProtocolErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_protocol_errors_total",
				Help: "Protocol predicates that failed to evaluate",
			},
			[]string{"protocol"},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_submissions_rejected_total",
				Help: "Rejected submissions by error code",
			},
			[]string{"code"},
		),
		CancellationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_cancellations_total",
				Help: "Triage records cancelled",
			},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "triage_queue_depth",
				Help: "Active records in the waiting queue at the last read, by level",
			},
			[]string{"level"},
		),
	}
}

func (m *Metrics) observeClassification(pathway Pathway, res Result) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(string(pathway), res.Final.String()).Inc()
	if res.Original != nil {
		m.EscalationsTotal.WithLabelValues(string(pathway), res.Original.String(), res.Final.String()).Inc()
	}
	if res.Protocol != nil {
		m.ProtocolMatchesTotal.WithLabelValues(res.Protocol.Code).Inc()
	}
}

func (m *Metrics) observeRejection(err error) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(string(CodeOf(err))).Inc()
}

func (m *Metrics) observeProtocolError(code string) {
	if m == nil {
		return
	}
	m.ProtocolErrorsTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) observeCancellation() {
	if m == nil {
		return
	}
	m.CancellationsTotal.Inc()
}

func (m *Metrics) observeQueue(entries []QueueEntry) {
	if m == nil {
		return
	}
	counts := make(map[Level]int, 5)
	for _, e := range entries {
		counts[e.Level]++
	}
	for _, l := range Levels() {
		m.QueueDepth.WithLabelValues(l.String()).Set(float64(counts[l]))
	}
}
