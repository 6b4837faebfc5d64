package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsc_outcomes_total",
			Help: "Per-recipient dispatch outcomes by kind",
		},
		[]string{"kind"}, // sent | invalid-number | server-error | ...
	)

	GatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsc_gateway_calls_total",
			Help: "Gateway HTTP calls by operation and result",
		},
		[]string{"op", "result"}, // send|balance , ok|transport_error
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsc_webhook_events_total",
			Help: "Inbound delivery-report webhooks by reconciliation result",
		},
		[]string{"result"}, // applied | stale | unknown_token
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OutcomesTotal,
		GatewayCallsTotal,
		WebhookEventsTotal,
	)
}
