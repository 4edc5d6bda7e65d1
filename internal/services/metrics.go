package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	incoming       *prometheus.CounterVec
	repliesSent    prometheus.Counter
	sendFailures   prometheus.Counter
	deleteFailures prometheus.Counter
	saveFailures   *prometheus.CounterVec
	ownerActive    prometheus.Gauge
	trackedPeers   prometheus.Gauge
}

// NewMetrics registers collectors on reg. A nil reg gives unregistered
// collectors, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		incoming: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoreply_incoming_messages_total",
				Help: "Incoming business messages by handling outcome",
			},
			[]string{"outcome"},
		),
		repliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoreply_replies_sent_total",
			Help: "Auto-replies delivered to peers",
		}),
		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoreply_send_failures_total",
			Help: "Auto-replies that could not be delivered",
		}),
		deleteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoreply_delete_failures_total",
			Help: "Previous auto-replies that could not be deleted",
		}),
		saveFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoreply_persist_failures_total",
				Help: "Failed writes to the settings or reply state store",
			},
			[]string{"store"},
		),
		ownerActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autoreply_owner_active",
			Help: "1 while the owner is considered present",
		}),
		trackedPeers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autoreply_tracked_peers",
			Help: "Conversations with a remembered auto-reply",
		}),
	}
}

func (m *Metrics) observeOutcome(o Outcome) {
	m.incoming.WithLabelValues(string(o)).Inc()
	switch o {
	case OutcomeReplied:
		m.repliesSent.Inc()
	case OutcomeSendFailed:
		m.sendFailures.Inc()
	}
}

func (m *Metrics) setOwnerActive(active bool) {
	if active {
		m.ownerActive.Set(1)
	} else {
		m.ownerActive.Set(0)
	}
}
