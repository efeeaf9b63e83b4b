package sandwich

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventMetrics tracks event-related metrics
var EventMetrics = struct {
	EventsTotal    *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	GatewayLatency *prometheus.GaugeVec
}{
	EventsTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandwich_qq_events_total",
			Help: "Total number of events dispatched, split by identifier and event type",
		},
		[]string{"application_identifier", "event_type"},
	),
	EventsDropped: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandwich_qq_events_dropped_total",
			Help: "Total number of gateway payloads dropped, split by reason",
		},
		[]string{"application_identifier", "reason"},
	),
	GatewayLatency: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sandwich_qq_gateway_latency_seconds",
			Help: "Gateway latency in seconds, measured by heartbeat",
		},
		[]string{"application_identifier", "shard_id"},
	),
}

func RecordEvent(identifier, eventType string) {
	EventMetrics.EventsTotal.WithLabelValues(identifier, eventType).Inc()
}

func RecordDroppedPayload(identifier, reason string) {
	EventMetrics.EventsDropped.WithLabelValues(identifier, reason).Inc()
}

func UpdateGatewayLatency(identifier string, shardID int32, latency float64) {
	EventMetrics.GatewayLatency.WithLabelValues(identifier, strconv.Itoa(int(shardID))).Set(latency)
}

// ShardMetrics tracks shard-related metrics
var ShardMetrics = struct {
	ApplicationStatus *prometheus.GaugeVec
	ShardStatus       *prometheus.GaugeVec
	Reconnects        *prometheus.CounterVec
}{
	ApplicationStatus: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sandwich_qq_application_status",
			Help: "Status of the application",
		},
		[]string{"application_identifier"},
	),
	ShardStatus: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sandwich_qq_shard_status",
			Help: "Status of the shard",
		},
		[]string{"application_identifier", "shard_id"},
	),
	Reconnects: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandwich_qq_shard_reconnects_total",
			Help: "Number of reconnect attempts made by a shard",
		},
		[]string{"application_identifier", "shard_id"},
	),
}

func UpdateApplicationStatus(identifier string, status ApplicationStatus) {
	ShardMetrics.ApplicationStatus.WithLabelValues(identifier).Set(float64(status))
}

func UpdateShardStatus(identifier string, shardID int32, status ShardStatus) {
	ShardMetrics.ShardStatus.WithLabelValues(identifier, strconv.Itoa(int(shardID))).Set(float64(status))
}

func RecordReconnect(identifier string, shardID int32) {
	ShardMetrics.Reconnects.WithLabelValues(identifier, strconv.Itoa(int(shardID))).Inc()
}
