package server

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the Prometheus collectors the server registers when
// metrics are enabled. All fields are safe to use even when nothing ever
// scrapes them.
type metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsActive   prometheus.Gauge
	protocolErrors      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coffer",
			Name:      "connections_accepted_total",
			Help:      "Total number of TCP connections accepted by the coffer server.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coffer",
			Name:      "connections_active",
			Help:      "Number of coffer protocol connections currently being served.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coffer",
			Name:      "protocol_errors_total",
			Help:      "Total number of connections terminated due to a protocol violation.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.connectionsAccepted, m.connectionsActive, m.protocolErrors)
	}
	return m
}
