// Package metrics provides Prometheus metrics for the stats bot.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statsbot",
		Name:      "messages_processed_total",
		Help:      "Total number of group messages applied to user stats.",
	}, []string{"kind"}) // "text" or "other"
	UpdatesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statsbot",
		Name:      "updates_dropped_total",
		Help:      "Total number of stats updates dropped after a persistence failure.",
	}, []string{"stage"})
	ReportsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statsbot",
		Name:      "reports_sent_total",
		Help:      "Total number of group reports sent.",
	})
	ReportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statsbot",
		Name:      "report_errors_total",
		Help:      "Total number of group reports that failed to render or send.",
	})
	HintsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statsbot",
		Name:      "hints_sent_total",
		Help:      "Total number of usage hints sent to private chats.",
	})

	// Transport metrics.
	PollErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statsbot",
		Subsystem: "telegram",
		Name:      "poll_errors_total",
		Help:      "Total number of failed getUpdates calls.",
	})

	// Reminder metrics.
	RemindersSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statsbot",
		Subsystem: "reminder",
		Name:      "sent_total",
		Help:      "Total number of reminder notifications by result.",
	}, []string{"result"}) // "ok" or "error"
)

func init() {
	prometheus.MustRegister(
		MessagesProcessed,
		UpdatesDropped,
		ReportsSent,
		ReportErrors,
		HintsSent,

		PollErrors,

		RemindersSent,
	)
}
