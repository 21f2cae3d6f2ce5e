package master

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "jobreg_"

var jobCreateCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "job_create_total",
		Help: "Job creation requests by resulting status",
	},
	[]string{"status"},
)

var jobDeleteCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "job_delete_total",
		Help: "Job deletion requests by resulting status",
	},
	[]string{"status"},
)

var eventPublishFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "event_publish_failures_total",
		Help: "Job events that could not be appended to the event stream",
	},
)
