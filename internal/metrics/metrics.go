package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "overboard",
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "Messages inserted through the composer.",
	})

	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "overboard",
		Subsystem: "chat",
		Name:      "send_failures_total",
		Help:      "Message sends that failed after validation.",
	})

	ReceiptsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "overboard",
		Subsystem: "chat",
		Name:      "read_receipts_total",
		Help:      "Read receipts newly written.",
	})

	FeedSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "overboard",
		Subsystem: "realtime",
		Name:      "subscriptions",
		Help:      "Live change-feed subscriptions.",
	})

	FeedChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "overboard",
		Subsystem: "realtime",
		Name:      "changes_total",
		Help:      "Changes dispatched to subscribers, by table and event.",
	}, []string{"table", "event"})
)
