package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every cartwin metric and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// MessagesReceived counts inbound transport messages before any processing.
	MessagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cartwin_messages_received_total",
			Help: "Total number of telemetry messages received from the transport.",
		},
	)

	// MessagesDropped counts messages that never reached the state store.
	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwin_messages_dropped_total",
			Help: "Total number of telemetry messages dropped, by reason.",
		},
		[]string{"reason"}, // undecodable, unmapped_device, device_disabled, no_vehicle, directory_error
	)

	// UnmappedCodes counts measurement codes that are not in the table.
	UnmappedCodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cartwin_unmapped_codes_total",
			Help: "Total number of measurement codes ignored because they are not in the table.",
		},
	)

	PersistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwin_persist_total",
			Help: "Persistence gate decisions, by result.",
		},
		[]string{"result"}, // written, failed, skipped
	)

	PersistLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cartwin_persist_latency_seconds",
			Help:    "Latency of durable telemetry writes.",
			Buckets: prometheus.DefBuckets,
		},
	)

	HubTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwin_hub_tasks_total",
			Help: "Work handed to the broadcast loop, by task and result.",
		},
		[]string{"task", "result"}, // broadcast|register|unregister, scheduled|not_running|queue_full
	)

	// SubscriberEvictions counts subscribers removed after a failed send.
	SubscriberEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cartwin_subscriber_evictions_total",
			Help: "Total number of live subscribers removed because a send failed.",
		},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartwin_subscribers",
			Help: "Number of currently registered live subscribers.",
		},
	)

	Vehicles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cartwin_vehicles",
			Help: "Number of tracked vehicles, by liveness.",
		},
		[]string{"state"}, // running, offline
	)

	LivenessTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwin_liveness_transitions_total",
			Help: "Vehicle liveness transitions, by target state.",
		},
		[]string{"state"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		MessagesReceived,
		MessagesDropped,
		UnmappedCodes,
		PersistTotal,
		PersistLatency,
		HubTasksTotal,
		SubscriberEvictions,
		Subscribers,
		Vehicles,
		LivenessTransitions,
	)
}
