// Package metrics exposes the simulator's Prometheus gauges/counters
// (registration outcomes, heartbeat counters, in-flight worker-command
// concurrency) plus the liveness/readiness handlers the teacher's own
// pkg/metrics carries alongside its cluster metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NetworksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsim_networks_total",
			Help: "Total number of networks currently in the tree",
		},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_nodes_total",
			Help: "Total number of nodes by type and state",
		},
		[]string{"type", "state"},
	)

	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsim_registrations_total",
			Help: "Total number of node registration attempts by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsim_heartbeats_total",
			Help: "Total number of heartbeat POSTs by node type and outcome",
		},
		[]string{"type", "outcome"},
	)

	WorkerCommandsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_worker_commands_in_flight",
			Help: "Number of worker commands currently occupying a concurrency slot, by hub",
		},
		[]string{"hub"},
	)

	NMSRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsim_nms_request_duration_seconds",
			Help:    "NMS HTTP call duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsim_api_requests_total",
			Help: "Total number of controller HTTP API requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsim_api_request_duration_seconds",
			Help:    "Controller HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		NetworksTotal,
		NodesTotal,
		RegistrationsTotal,
		HeartbeatsTotal,
		WorkerCommandsInFlight,
		NMSRequestDuration,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler serves the Prometheus exposition format at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
