package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger transitions.
type Metrics struct {
	InvitesIssued      prometheus.Counter
	InvitesActivated   prometheus.Counter
	WalletsVerified    prometheus.Counter
	WalletsConnected   prometheus.Counter
	BatchesIssued      prometheus.Counter
	TransitionFailures *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
}

// New registers ledger metrics on reg, or the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		InvitesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_invites_issued_total",
			Help: "Total number of invite credentials issued, including batch issuance",
		}),
		InvitesActivated: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_invites_activated_total",
			Help: "Total number of invite codes consumed by activation",
		}),
		WalletsVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_wallets_verified_total",
			Help: "Total number of wallets that proved ownership",
		}),
		WalletsConnected: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_wallets_connected_total",
			Help: "Total number of wallets bound to an activated identity",
		}),
		BatchesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_batches_issued_total",
			Help: "Total number of member batch issuances",
		}),
		TransitionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invitegate_transition_failures_total",
			Help: "Failed ledger transitions by operation and error code",
		}, []string{"operation", "code"}),
		TransitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invitegate_transition_duration_seconds",
			Help:    "Duration of ledger transitions including the transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncInvitesIssued(n int) {
	if m == nil {
		return
	}
	m.InvitesIssued.Add(float64(n))
}

func (m *Metrics) IncInvitesActivated() {
	if m == nil {
		return
	}
	m.InvitesActivated.Inc()
}

func (m *Metrics) IncWalletsVerified() {
	if m == nil {
		return
	}
	m.WalletsVerified.Inc()
}

func (m *Metrics) IncWalletsConnected() {
	if m == nil {
		return
	}
	m.WalletsConnected.Inc()
}

func (m *Metrics) IncBatchesIssued() {
	if m == nil {
		return
	}
	m.BatchesIssued.Inc()
}

// ObserveTransition records the duration of an operation started at start and,
// when code is non-empty, a failure with that code.
func (m *Metrics) ObserveTransition(operation string, start time.Time, code string) {
	if m == nil {
		return
	}
	m.TransitionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if code != "" {
		m.TransitionFailures.WithLabelValues(operation, code).Inc()
	}
}
