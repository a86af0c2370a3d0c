// Package metrics holds the Prometheus collectors for the payment core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylemart_orders_created_total",
		Help: "Orders created, by payment method.",
	}, []string{"payment_method"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylemart_payment_reconciliations_total",
		Help: "Reconciliation attempts, by outcome and verifier.",
	}, []string{"outcome", "verifier"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylemart_webhook_events_total",
		Help: "Gateway webhook deliveries, by event type.",
	}, []string{"event"})
)
