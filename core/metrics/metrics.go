// Package metrics holds the Prometheus collectors shared by the bot and the
// small ops HTTP server that exposes them.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	wizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectbot_wizard_transitions_total",
			Help: "Handled wizard inputs by source state, target state and outcome",
		},
		[]string{"from", "to", "outcome"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectbot_submissions_total",
			Help: "Project submissions by result",
		},
		[]string{"result"},
	)

	attachmentUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectbot_attachment_uploads_total",
			Help: "Attachment uploads by result",
		},
		[]string{"result"},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectbot_api_requests_total",
			Help: "Marketplace API calls by operation and status",
		},
		[]string{"op", "status"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectbot_api_request_duration_seconds",
			Help:    "Marketplace API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectbot_tg_messages_sent_total",
			Help: "Telegram messages sent by handlers",
		},
		[]string{"kb"},
	)

	registerOnce sync.Once
)

// Register adds all collectors to reg once. A nil reg uses the default registerer.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			wizardTransitions,
			submissions,
			attachmentUploads,
			apiRequests,
			apiDuration,
			messagesSent,
		)
	})
}

// RecordTransition counts one handled wizard input.
func RecordTransition(from, to, outcome string) {
	wizardTransitions.WithLabelValues(from, to, outcome).Inc()
}

// RecordSubmission counts a submission attempt result.
func RecordSubmission(result string) {
	submissions.WithLabelValues(result).Inc()
}

// RecordUpload counts an attachment upload result.
func RecordUpload(ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	attachmentUploads.WithLabelValues(result).Inc()
}

// RecordAPI records a marketplace call.
func RecordAPI(op, status string, took time.Duration) {
	apiRequests.WithLabelValues(op, status).Inc()
	apiDuration.WithLabelValues(op).Observe(took.Seconds())
}

// RecordMessage counts a message sent to Telegram.
func RecordMessage(withKeyboard bool) {
	kb := "false"
	if withKeyboard {
		kb = "true"
	}
	messagesSent.WithLabelValues(kb).Inc()
}
