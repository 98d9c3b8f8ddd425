package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Message routing metrics
	MessagesHandled *prometheus.CounterVec

	// Reminder metrics
	RemindersScheduled     prometheus.Counter
	RemindersFired         prometheus.Counter
	ReminderDeliveryErrors prometheus.Counter

	// Completion API metrics
	LLMRequests       prometheus.Counter
	LLMErrors         prometheus.Counter
	LLMRequestLatency prometheus.Histogram
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Inbound messages by resolved intent (counter - only goes up)
		MessagesHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sputnik_messages_total",
			Help: "Total number of inbound messages by resolved intent",
		}, []string{"intent"}),

		RemindersScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sputnik_reminders_scheduled_total",
			Help: "Total number of one-shot reminders registered",
		}),

		RemindersFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sputnik_reminders_fired_total",
			Help: "Total number of reminders whose trigger fired",
		}),

		ReminderDeliveryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sputnik_reminder_delivery_errors_total",
			Help: "Total number of reminder deliveries that failed (swallowed, never retried)",
		}),

		LLMRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sputnik_llm_requests_total",
			Help: "Total number of chat completion requests",
		}),

		LLMErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sputnik_llm_errors_total",
			Help: "Total number of failed chat completion requests",
		}),

		LLMRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sputnik_llm_request_duration_seconds",
			Help:    "Chat completion latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // LLM responses can be slow
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (nil before InitMetrics)
func GetMetrics() *Metrics {
	return globalMetrics
}
