package assignment

import "github.com/prometheus/client_golang/prometheus"

var decisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_routing_assignment_decisions_total",
		Help: "Assignment decisions by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(decisionsTotal)
}

func observeDecision(outcome Outcome) {
	decisionsTotal.WithLabelValues(string(outcome)).Inc()
}
