// internal/service/checkout/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_operations_total",
		Help: "Tracked asynchronous operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	paymentSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_sessions_total",
		Help: "Payment sessions reaching a terminal status.",
	}, []string{"status"})

	widgetOpenRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_widget_open_retries_total",
		Help: "Retries of the payment widget open call while the bridge was not ready.",
	})
)
