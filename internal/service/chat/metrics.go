package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	chatsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_routing_chats_opened_total",
			Help: "Chats opened by visitors.",
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_routing_queue_depth",
			Help: "Queued chats observed at the last redispatch pass.",
		},
	)
)

func init() {
	prometheus.MustRegister(chatsOpenedTotal, queueDepth)
}
